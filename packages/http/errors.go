package http

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when the base URL and path do not form a
	// usable http or https URL
	ErrInvalidURL = errors.New("invalid URL")

	// ErrTransport is matched by every TransportError
	ErrTransport = errors.New("transport failure")

	// ErrUpload is matched by every UploadError
	ErrUpload = errors.New("upload failure")

	// ErrSizeMismatch is returned when an upload stream yields a different
	// number of bytes than it declared
	ErrSizeMismatch = errors.New("stream size mismatch")
)

// ConfigError reports a request that could not be built. No I/O has been
// attempted when it is returned.
type ConfigError struct {
	URL string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid request URL %q: %v", e.URL, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidURL
}

// TransportError reports a failure to reach the server or to exchange data
// with it. Response is nil for failures while writing the request body and
// otherwise a synthesized response with StatusNoResponse.
type TransportError struct {
	// Op is the lifecycle step that failed: open, prepare, write or read
	Op       string
	URL      string
	Err      error
	Response *Response
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Timeout reports whether the failure was caused by a timeout.
func (e *TransportError) Timeout() bool {
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// UploadError reports a problem with one upload stream.
type UploadError struct {
	Field string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload field %q: %v", e.Field, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUpload
}

// ProtocolError is returned by a transport when the server answered but the
// transport treats the answer as an error. The client turns it back into a
// regular Response.
type ProtocolError struct {
	Incoming *Incoming
}

func (e *ProtocolError) Error() string {
	if e.Incoming == nil {
		return "protocol error"
	}
	return fmt.Sprintf("protocol error: %d %s", e.Incoming.StatusCode, e.Incoming.Status)
}
