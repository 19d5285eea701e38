package http

// RequestLogger receives a trace of every request the client executes. The
// client only calls LogRequest, LogResponse and Log when Enabled returns true.
type RequestLogger interface {
	Enabled() bool
	Log(msg string)
	// LogRequest is called once the connection is prepared. content is the
	// URL-decoded request body, or empty when there is none.
	LogRequest(conn Connection, content string)
	// LogResponse may be called with a nil response.
	LogResponse(resp *Response)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Enabled() bool { return false }
func (NopLogger) Log(string) {}
func (NopLogger) LogRequest(Connection, string) {}
func (NopLogger) LogResponse(*Response) {}
