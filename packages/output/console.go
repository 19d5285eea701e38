package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/restclient/packages/http"
	"github.com/fatih/color"
)

// maxBodyPreview caps how much of a body is echoed in verbose mode.
const maxBodyPreview = 2048

// formatBody truncates long bodies for display
func formatBody(body string, maxLen int) string {
	if len(body) > maxLen {
		return body[:maxLen] + fmt.Sprintf("... (%d bytes)", len(body))
	}
	return body
}

// ConsoleLogger writes a human readable trace of requests and responses.
// It implements http.RequestLogger.
type ConsoleLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleLogger)

func NewConsoleLogger(opts ...ConsoleOption) *ConsoleLogger {
	l := &ConsoleLogger{
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.noColor {
		color.NoColor = true
	}
	return l
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(l *ConsoleLogger) {
		l.writer = w
	}
}

// WithVerbose also prints headers and bodies.
func WithVerbose(v bool) ConsoleOption {
	return func(l *ConsoleLogger) {
		l.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(l *ConsoleLogger) {
		l.noColor = nc
	}
}

func (l *ConsoleLogger) Enabled() bool {
	return true
}

func (l *ConsoleLogger) Log(msg string) {
	yellow := color.New(color.FgYellow).SprintFunc()

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.writer, "%s %s\n", yellow("!"), msg)
}

func (l *ConsoleLogger) LogRequest(conn http.Connection, content string) {
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.writer, "%s %s %s\n", cyan(">"), bold(conn.Method()), conn.URL())
	if !l.verbose {
		return
	}
	writeHeaders(l.writer, cyan(">"), conn.Header())
	if content != "" {
		fmt.Fprintf(l.writer, "%s\n%s\n", cyan(">"), formatBody(content, maxBodyPreview))
	}
}

func (l *ConsoleLogger) LogResponse(resp *http.Response) {
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	l.mu.Lock()
	defer l.mu.Unlock()
	if resp == nil {
		fmt.Fprintf(l.writer, "%s %s\n", red("<"), red("no response"))
		return
	}

	status := fmt.Sprintf("%d", resp.StatusCode)
	if resp.Status != "" {
		status = resp.Status
	}
	switch {
	case !resp.Received():
		status = red("no response")
	case resp.IsSuccess():
		status = green(status)
	case resp.IsRedirect():
		status = yellow(status)
	default:
		status = red(status)
	}

	fmt.Fprintf(l.writer, "%s %s %s\n", cyan("<"), status, cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))
	if !l.verbose {
		return
	}
	writeHeaders(l.writer, cyan("<"), resp.Headers)
	if len(resp.Body) > 0 {
		fmt.Fprintf(l.writer, "%s\n%s\n", cyan("<"), formatBody(resp.BodyString(), maxBodyPreview))
	}
}

func writeHeaders(w io.Writer, prefix string, headers map[string][]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if prefix != "" {
		prefix += " "
	}
	for _, k := range keys {
		fmt.Fprintf(w, "%s%s: %s\n", prefix, k, strings.Join(headers[k], ", "))
	}
}

// ConsoleFormatter prints command results to stdout.
type ConsoleFormatter struct {
	writer      io.Writer
	noColor     bool
	showHeaders bool
}

type FormatterOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...FormatterOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithOutput(w io.Writer) FormatterOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithShowHeaders(show bool) FormatterOption {
	return func(f *ConsoleFormatter) {
		f.showHeaders = show
	}
}

func WithPlain(plain bool) FormatterOption {
	return func(f *ConsoleFormatter) {
		f.noColor = plain
	}
}

// FormatResponse prints the body, preceded by the status line and headers
// when WithShowHeaders is set.
func (f *ConsoleFormatter) FormatResponse(resp *http.Response) {
	bold := color.New(color.Bold).SprintFunc()

	if f.showHeaders {
		fmt.Fprintf(f.writer, "%s\n", bold(resp.Status))
		writeHeaders(f.writer, "", resp.Headers)
		fmt.Fprintln(f.writer)
	}
	if len(resp.Body) > 0 {
		fmt.Fprint(f.writer, resp.BodyString())
		if !strings.HasSuffix(resp.BodyString(), "\n") {
			fmt.Fprintln(f.writer)
		}
	}
}

// FormatValue prints a single extracted value.
func (f *ConsoleFormatter) FormatValue(value string) {
	fmt.Fprintln(f.writer, value)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}
