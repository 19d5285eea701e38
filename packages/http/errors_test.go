package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportError(t *testing.T) {
	err := fmt.Errorf("get failed: %w", &TransportError{Op: "read", URL: "http://x", Err: io.EOF})

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, ErrInvalidURL)
	assert.Equal(t, "get failed: read http://x: EOF", err.Error())
}

func TestTransportError_Timeout(t *testing.T) {
	timeout := &TransportError{Op: "read", Err: context.DeadlineExceeded}
	assert.True(t, timeout.Timeout())

	other := &TransportError{Op: "read", Err: io.EOF}
	assert.False(t, other.Timeout())
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{URL: "ftp://x", Err: errors.New("bad scheme")}

	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "ftp://x")
}

func TestUploadError(t *testing.T) {
	err := &UploadError{Field: "file0", Err: ErrSizeMismatch}

	assert.ErrorIs(t, err, ErrUpload)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.Equal(t, `upload field "file0": stream size mismatch`, err.Error())
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Incoming: &Incoming{StatusCode: 503, Status: "Service Unavailable"}}
	assert.Equal(t, "protocol error: 503 Service Unavailable", err.Error())
}
