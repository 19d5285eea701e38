package output

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/restclient/packages/http"
)

// Formatter prints the result of a CLI request command.
type Formatter interface {
	FormatResponse(resp *http.Response)
	FormatValue(value string)
	FormatError(err error)
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	URL        string            `json:"url,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
	Time       string            `json:"time"`
}

type jsonValue struct {
	Value string `json:"value"`
}

type jsonError struct {
	Error string `json:"error"`
}

// JSONFormatter writes one JSON document per result
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// FormatResponse embeds JSON bodies as-is and any other body as a string.
func (f *JSONFormatter) FormatResponse(resp *http.Response) {
	out := JSONResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        resp.URL,
		Duration:   float64(resp.Duration.Milliseconds()),
		Time:       time.Now().Format(time.RFC3339),
	}

	if len(resp.Headers) > 0 {
		out.Headers = make(map[string]string, len(resp.Headers))
		for k, v := range resp.Headers {
			out.Headers[k] = strings.Join(v, ", ")
		}
	}

	if len(resp.Body) > 0 {
		if json.Valid(resp.Body) {
			out.Body = resp.Body
		} else {
			encoded, _ := json.Marshal(resp.BodyString())
			out.Body = encoded
		}
	}

	f.encode(out)
}

func (f *JSONFormatter) FormatValue(value string) {
	f.encode(jsonValue{Value: value})
}

func (f *JSONFormatter) FormatError(err error) {
	f.encode(jsonError{Error: err.Error()})
}

func (f *JSONFormatter) encode(v any) {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
