package output

import (
	"io"

	"github.com/abdul-hamid-achik/restclient/packages/http"
	"github.com/sirupsen/logrus"
)

// LogrusLogger emits one structured entry per request and response.
// It implements http.RequestLogger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps an existing logger. Entries are written at debug
// level for requests and info level for responses, so the logger's level
// decides whether requests are traced at all.
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{entry: logrus.NewEntry(logger)}
}

// NewJSONLogger builds a logrus logger writing JSON lines to w.
func NewJSONLogger(w io.Writer, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "@timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	return logger
}

// WithFields returns a logger that adds fields to every entry.
func (l *LogrusLogger) WithFields(fields logrus.Fields) *LogrusLogger {
	return &LogrusLogger{entry: l.entry.WithFields(fields)}
}

func (l *LogrusLogger) Enabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}

func (l *LogrusLogger) Log(msg string) {
	l.entry.Warn(msg)
}

func (l *LogrusLogger) LogRequest(conn http.Connection, content string) {
	fields := logrus.Fields{
		"method": conn.Method(),
		"url":    conn.URL().String(),
	}
	if content != "" {
		fields["content"] = content
	}
	l.entry.WithFields(fields).Debug("request")
}

func (l *LogrusLogger) LogResponse(resp *http.Response) {
	if resp == nil {
		l.entry.Warn("no response")
		return
	}

	entry := l.entry.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"url":         resp.URL,
		"duration_ms": resp.DurationMs(),
		"bytes":       len(resp.Body),
	})
	switch {
	case !resp.Received():
		entry.Warn("no response")
	case resp.IsServerError():
		entry.Error("response")
	default:
		entry.Info("response")
	}
}
