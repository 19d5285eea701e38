package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/restclient/packages/http"
	"github.com/abdul-hamid-achik/restclient/packages/metrics"
)

// Runner executes bench runs
type Runner struct {
	config   *Config
	client   *http.Client
	latency  *metrics.LatencyObserver
	reporter *Reporter
	progress func(done, total int)
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithLatencyObserver records outcomes into l instead of a private observer,
// so callers can share it with other consumers.
func WithLatencyObserver(l *metrics.LatencyObserver) RunnerOption {
	return func(r *Runner) {
		r.latency = l
	}
}

// WithReporter prints the header before and the summary after each run.
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithProgress sets a callback invoked after every completed request. Calls
// are serialized and done increases by one each time.
func WithProgress(fn func(done, total int)) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

func NewRunner(client *http.Client, config *Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		config: config,
		client: client,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.latency == nil {
		r.latency = metrics.NewLatencyObserver()
	}

	return r
}

// Summary holds the final results of a run
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	StatusCodes   map[int]int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Thresholds []ThresholdResult
}

// Passed reports whether every threshold held.
func (s *Summary) Passed() bool {
	for _, t := range s.Thresholds {
		if !t.Passed {
			return false
		}
	}
	return true
}

// Run sends config.Requests clones of req. When ctx is cancelled or the
// configured duration elapses, no further requests are started; the ones
// in flight are awaited and the partial summary is returned with the
// context's error.
func (r *Runner) Run(ctx context.Context, req *http.Request) (*Summary, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := http.ValidateURL(r.client.BaseURL()); err != nil && !isAbsolute(req.Path) {
		return nil, err
	}

	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	if r.reporter != nil {
		r.reporter.Header(req, r.config)
	}

	scheduler := NewScheduler(r.config)
	total := r.config.Requests

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		done    int
		stopErr error
	)

	start := time.Now()
	for i := 0; i < total; i++ {
		if err := scheduler.Wait(ctx); err != nil {
			stopErr = err
			break
		}
		if err := scheduler.Acquire(ctx); err != nil {
			stopErr = err
			break
		}

		clone := req.Clone()
		results := r.client.ExecuteAsync(clone)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer scheduler.Release()

			res := <-results
			r.latency.OnComplete(clone, outcome(res), res.Err)

			if r.progress != nil {
				mu.Lock()
				done++
				r.progress(done, total)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	summary := r.summarize(time.Since(start))
	if r.reporter != nil {
		r.reporter.Summary(summary)
	}

	return summary, stopErr
}

// outcome returns the response a result carries, including the synthesized
// one attached to a transport failure.
func outcome(res http.Result) *http.Response {
	if res.Response != nil {
		return res.Response
	}
	var te *http.TransportError
	if errors.As(res.Err, &te) {
		return te.Response
	}
	return nil
}

func (r *Runner) summarize(elapsed time.Duration) *Summary {
	snap := r.latency.Snapshot()

	s := &Summary{
		Duration:      elapsed,
		TotalRequests: snap.Total,
		SuccessCount:  snap.Success,
		ErrorCount:    snap.Errors,
		TimeoutCount:  snap.Timeouts,
		StatusCodes:   snap.StatusCodes,
		P50:           snap.P50,
		P95:           snap.P95,
		P99:           snap.P99,
		Min:           snap.Min,
		Max:           snap.Max,
		Mean:          snap.Mean,
		StdDev:        snap.StdDev,
	}

	if elapsed > 0 {
		s.RPS = float64(snap.Total) / elapsed.Seconds()
	}
	if snap.Total > 0 {
		s.SuccessRate = float64(snap.Success) / float64(snap.Total)
		s.ErrorRate = float64(snap.Errors) / float64(snap.Total)
	}

	s.Thresholds = r.config.Thresholds.Evaluate(s)
	return s
}

func isAbsolute(path string) bool {
	return http.ValidateURL(path) == nil
}
