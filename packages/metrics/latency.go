package metrics

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	restclient "github.com/abdul-hamid-achik/restclient/packages/http"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// LatencyObserver collects a latency histogram and outcome counters for
// every completed request.
type LatencyObserver struct {
	mu sync.Mutex
	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	total    atomic.Int64
	success  atomic.Int64
	errors   atomic.Int64
	timeouts atomic.Int64

	statusMu    sync.Mutex
	statusCodes map[int]int64
}

// Snapshot is a point-in-time view of a LatencyObserver.
type Snapshot struct {
	Total       int64
	Success     int64
	Errors      int64
	Timeouts    int64
	StatusCodes map[int]int64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

func NewLatencyObserver() *LatencyObserver {
	return &LatencyObserver{
		// Histogram: 1us to 60s range, 3 significant digits
		histogram:   hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statusCodes: make(map[int]int64),
	}
}

func (l *LatencyObserver) OnSending(*restclient.Request) {}

func (l *LatencyObserver) OnSuccess(*restclient.Request, *restclient.Response) {}

func (l *LatencyObserver) OnFailure(*restclient.Request, *restclient.Response, error) {}

// OnComplete counts a request as successful only when it produced a 2xx
// response.
func (l *LatencyObserver) OnComplete(_ *restclient.Request, resp *restclient.Response, err error) {
	l.total.Add(1)
	if err == nil && resp != nil && resp.IsSuccess() {
		l.success.Add(1)
	} else {
		l.errors.Add(1)
	}

	var te *restclient.TransportError
	if errors.As(err, &te) && te.Timeout() {
		l.timeouts.Add(1)
	}

	if resp == nil {
		return
	}

	if resp.Received() {
		l.statusMu.Lock()
		l.statusCodes[resp.StatusCode]++
		l.statusMu.Unlock()
	}
	l.Record(resp.Duration)
}

// Record adds one latency sample.
func (l *LatencyObserver) Record(d time.Duration) {
	latencyUs := d.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	l.mu.Lock()
	_ = l.histogram.RecordValue(latencyUs)
	l.mu.Unlock()
}

func (l *LatencyObserver) Snapshot() Snapshot {
	l.statusMu.Lock()
	codes := make(map[int]int64, len(l.statusCodes))
	for code, n := range l.statusCodes {
		codes[code] = n
	}
	l.statusMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	return Snapshot{
		Total:       l.total.Load(),
		Success:     l.success.Load(),
		Errors:      l.errors.Load(),
		Timeouts:    l.timeouts.Load(),
		StatusCodes: codes,
		P50:         usToDuration(l.histogram.ValueAtQuantile(50)),
		P95:         usToDuration(l.histogram.ValueAtQuantile(95)),
		P99:         usToDuration(l.histogram.ValueAtQuantile(99)),
		Min:         usToDuration(l.histogram.Min()),
		Max:         usToDuration(l.histogram.Max()),
		Mean:        time.Duration(l.histogram.Mean()) * time.Microsecond,
		StdDev:      time.Duration(l.histogram.StdDev()) * time.Microsecond,
	}
}

// Reset clears every sample and counter.
func (l *LatencyObserver) Reset() {
	l.mu.Lock()
	l.histogram.Reset()
	l.mu.Unlock()

	l.statusMu.Lock()
	l.statusCodes = make(map[int]int64)
	l.statusMu.Unlock()

	l.total.Store(0)
	l.success.Store(0)
	l.errors.Store(0)
	l.timeouts.Store(0)
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
