package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restclient "github.com/abdul-hamid-achik/restclient/packages/http"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool { return true }

func ok(d time.Duration) *restclient.Response {
	return &restclient.Response{StatusCode: 200, Status: "200 OK", Duration: d}
}

func TestLatencyObserver_Counts(t *testing.T) {
	l := NewLatencyObserver()
	req := &restclient.Request{Method: "GET"}

	l.OnComplete(req, ok(10*time.Millisecond), nil)
	l.OnComplete(req, ok(20*time.Millisecond), nil)
	l.OnComplete(req, &restclient.Response{StatusCode: 503, Duration: 5 * time.Millisecond}, &restclient.ProtocolError{})

	noResp := &restclient.Response{StatusCode: restclient.StatusNoResponse, Duration: time.Second}
	l.OnComplete(req, noResp, &restclient.TransportError{Op: "read", Err: timeoutErr{}, Response: noResp})
	l.OnComplete(req, nil, &restclient.ConfigError{URL: "ftp://x"})

	s := l.Snapshot()
	assert.Equal(t, int64(5), s.Total)
	assert.Equal(t, int64(2), s.Success)
	assert.Equal(t, int64(3), s.Errors)
	assert.Equal(t, int64(1), s.Timeouts)
	assert.Equal(t, map[int]int64{200: 2, 503: 1}, s.StatusCodes)
	assert.InDelta(t, float64(5*time.Millisecond), float64(s.Min), float64(100*time.Microsecond))
	assert.InDelta(t, float64(time.Second), float64(s.Max), float64(5*time.Millisecond))
}

func TestLatencyObserver_Percentiles(t *testing.T) {
	l := NewLatencyObserver()
	for i := 1; i <= 100; i++ {
		l.Record(time.Duration(i) * time.Millisecond)
	}

	s := l.Snapshot()
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(time.Millisecond))
	assert.Greater(t, s.StdDev, time.Duration(0))
}

func TestLatencyObserver_Clamp(t *testing.T) {
	l := NewLatencyObserver()
	l.Record(0)
	l.Record(2 * time.Minute)

	s := l.Snapshot()
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(60*time.Second), float64(s.Max), float64(100*time.Millisecond))
}

func TestLatencyObserver_Reset(t *testing.T) {
	l := NewLatencyObserver()
	l.OnComplete(&restclient.Request{Method: "GET"}, ok(time.Millisecond), nil)
	l.Reset()

	s := l.Snapshot()
	assert.Zero(t, s.Total)
	assert.Empty(t, s.StatusCodes)
}

func TestLatencyObserver_Concurrent(t *testing.T) {
	l := NewLatencyObserver()
	req := &restclient.Request{Method: "GET"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.OnComplete(req, ok(time.Millisecond), nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), l.Snapshot().Success)
}

func TestPrometheusObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusObserver(reg)
	req := &restclient.Request{Method: "GET"}

	p.OnSending(req)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.RequestsInFlight))
	p.OnSuccess(req, ok(time.Millisecond))
	p.OnComplete(req, ok(time.Millisecond), nil)

	noResp := &restclient.Response{StatusCode: restclient.StatusNoResponse}
	terr := &restclient.TransportError{Op: "open", Err: errors.New("refused"), Response: noResp}
	p.OnSending(req)
	p.OnFailure(req, noResp, terr)
	p.OnComplete(req, noResp, terr)

	assert.Equal(t, 0.0, testutil.ToFloat64(p.RequestsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.RequestsTotal.WithLabelValues("GET", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.TransportErrors.WithLabelValues("open")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.RequestDuration))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "404", statusLabel(&restclient.Response{StatusCode: 404}, nil))
	assert.Equal(t, "error", statusLabel(nil, errors.New("x")))
	assert.Equal(t, "none", statusLabel(nil, nil))
}

func TestPrometheusObserver_WithClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	p := NewPrometheusObserver(reg)
	client := restclient.NewClient(server.URL, restclient.WithObserver(p))

	_, err := client.Post("/items", restclient.NewParameterMap().Add("a", "1"))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.RequestsTotal.WithLabelValues("POST", "201")))
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusObserver(reg)
	p.OnSending(&restclient.Request{Method: "GET"})

	srv := NewServer(":0", reg)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "restclient_requests_in_flight 1"))

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
}
