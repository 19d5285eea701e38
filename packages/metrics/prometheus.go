package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	restclient "github.com/abdul-hamid-achik/restclient/packages/http"
)

const namespace = "restclient"

// PrometheusObserver records request counts, latencies and transport
// failures.
type PrometheusObserver struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	TransportErrors  *prometheus.CounterVec
}

// NewPrometheusObserver creates the metrics and registers them on reg.
// A nil reg uses the default registerer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusObserver{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Current number of requests being executed",
			},
		),
		TransportErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_errors_total",
				Help:      "Requests that failed before a response was received, by lifecycle step",
			},
			[]string{"op"},
		),
	}
}

func (p *PrometheusObserver) OnSending(*restclient.Request) {
	p.RequestsInFlight.Inc()
}

func (p *PrometheusObserver) OnSuccess(*restclient.Request, *restclient.Response) {}

func (p *PrometheusObserver) OnFailure(_ *restclient.Request, _ *restclient.Response, err error) {
	var te *restclient.TransportError
	if errors.As(err, &te) {
		p.TransportErrors.WithLabelValues(te.Op).Inc()
	}
}

func (p *PrometheusObserver) OnComplete(req *restclient.Request, resp *restclient.Response, err error) {
	p.RequestsInFlight.Dec()
	p.RequestsTotal.WithLabelValues(req.Method, statusLabel(resp, err)).Inc()
	// Requests rejected before any I/O have no duration.
	if resp != nil {
		p.RequestDuration.WithLabelValues(req.Method).Observe(resp.Duration.Seconds())
	}
}

func statusLabel(resp *restclient.Response, err error) string {
	if resp != nil && resp.Received() {
		return strconv.Itoa(resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "none"
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewServer returns a server exposing /metrics on addr.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
