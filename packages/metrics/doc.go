// Package metrics turns client request events into measurements.
//
// PrometheusObserver exports counters and histograms for scraping, and
// LatencyObserver keeps an in-memory HDR histogram for run summaries. Both
// implement http.Observer and can be attached with http.WithObserver.
package metrics
