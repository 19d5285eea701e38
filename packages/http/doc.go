// Package http provides a small REST client built around a pluggable transport.
//
// A Client resolves request paths against a base URL and drives each request
// through a Transport in a fixed order: open, prepare, write the body, read
// the response. Features:
//   - Verb helpers for GET, HEAD, DELETE, POST and PUT, each with an async twin
//   - Ordered parameter maps for query strings and URL-encoded forms
//   - Multipart file upload with an exact, precomputed content length
//   - Basic auth and AWS Signature Version 4
//   - Pluggable request logging and lifecycle observers
//
// Responses with any status are returned as values. Only failures to talk to
// the server at all are reported as errors.
package http
