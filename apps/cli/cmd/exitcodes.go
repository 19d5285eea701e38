package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/restclient/packages/http"
)

// Exit codes for restclient CLI
const (
	// ExitSuccess indicates the request succeeded
	ExitSuccess = 0

	// ExitRequestFailure indicates a non-2xx response or a failed threshold
	ExitRequestFailure = 1

	// ExitConfigError indicates a configuration or URL error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the exit code for an error returned by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func usageError(err error) error {
	return withExitCode(ExitUsageError, err)
}

func configError(err error) error {
	return withExitCode(ExitConfigError, err)
}

// exitCode maps an error returned by the command tree to a process exit
// code. Errors cobra produces itself (unknown commands, bad arguments) are
// usage errors.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch {
	case errors.Is(err, http.ErrInvalidURL):
		return ExitConfigError
	case errors.Is(err, http.ErrTransport):
		return ExitNetworkError
	case errors.Is(err, http.ErrUpload):
		return ExitRequestFailure
	}
	return ExitUsageError
}
