// Package bench fires one request many times through a restclient Client and
// summarizes the latencies.
//
// Requests are issued with Client.ExecuteAsync, paced by a token bucket when
// a rate is set and bounded by a concurrency limit. Nothing is retried: every
// failure counts against the error rate.
package bench
