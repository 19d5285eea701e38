package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restclient "github.com/abdul-hamid-achik/restclient/packages/http"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// echoServer answers with the method, query, form values and selected
// headers it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
			return
		case "/user":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"user":{"name":"Arsene","age":43}}`))
			return
		}

		body, _ := io.ReadAll(r.Body)
		out := map[string]any{
			"method":        r.Method,
			"query":         r.URL.RawQuery,
			"contentType":   r.Header.Get("Content-Type"),
			"accept":        r.Header.Get("Accept"),
			"authorization": r.Header.Get("Authorization"),
			"token":         r.Header.Get("X-Token"),
			"body":          string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(server.Close)
	return server
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), s)
	return out
}

func TestGet_QueryParameters(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "--base-url", server.URL, "get", "/items", "-p", "page=2", "-p", "q=a b")
	require.NoError(t, err)

	out := decode(t, stdout)
	assert.Equal(t, "GET", out["method"])
	assert.Equal(t, "page=2&q=a+b", out["query"])
	assert.Equal(t, "", out["body"])
	assert.Equal(t, "application/json", out["accept"])
}

func TestPost_FormBody(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL, "post", "/users", "-p", "name=Arsene", "-p", "age=43")
	require.NoError(t, err)

	out := decode(t, stdout)
	assert.Equal(t, "POST", out["method"])
	assert.Equal(t, "name=Arsene&age=43", out["body"])
	assert.Equal(t, "application/x-www-form-urlencoded", out["contentType"])
}

func TestPut_RawData(t *testing.T) {
	server := echoServer(t)
	dataFile := filepath.Join(t.TempDir(), "body.xml")
	require.NoError(t, os.WriteFile(dataFile, []byte("<a/>"), 0644))

	stdout, _, err := runCLI(t, "-b", server.URL, "put", "/doc", "--data", "@"+dataFile, "--content-type", "application/xml")
	require.NoError(t, err)

	out := decode(t, stdout)
	assert.Equal(t, "PUT", out["method"])
	assert.Equal(t, "<a/>", out["body"])
	assert.Equal(t, "application/xml", out["contentType"])
}

func TestRequest_Headers(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL,
		"-H", "X-Token: abc",
		"--user", "user:pass",
		"--accept", "application/xml",
		"delete", "/items/1")
	require.NoError(t, err)

	out := decode(t, stdout)
	assert.Equal(t, "DELETE", out["method"])
	assert.Equal(t, "abc", out["token"])
	assert.Equal(t, "Basic dXNlcjpwYXNz", out["authorization"])
	assert.Equal(t, "application/xml", out["accept"])
}

func TestRequest_PerRequestOverrides(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL, "-H", "X-Token: global",
		"get", "/x", "--as", "text/plain", "-r", "X-Token: local")
	require.NoError(t, err)

	out := decode(t, stdout)
	assert.Equal(t, "text/plain", out["accept"])
	assert.Equal(t, "local", out["token"])
}

func TestRequest_Query(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL, "get", "/user", "-q", "user.name")
	require.NoError(t, err)
	assert.Equal(t, "Arsene\n", stdout)

	_, _, err = runCLI(t, "-b", server.URL, "get", "/user", "-q", "user.email")
	require.Error(t, err)
	assert.Equal(t, ExitRequestFailure, exitCode(err))
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL, "get", "/missing")
	require.Error(t, err)
	assert.Equal(t, ExitRequestFailure, exitCode(err))
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, stdout, "not found")
}

func TestRequest_JSONOutput(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL, "-o", "json", "get", "/user")
	require.NoError(t, err)

	out := decode(t, stdout)
	assert.Equal(t, float64(200), out["statusCode"])
	assert.Equal(t, "Arsene", out["body"].(map[string]any)["user"].(map[string]any)["name"])
}

func TestRequest_VerboseTrace(t *testing.T) {
	server := echoServer(t)

	stdout, stderr, err := runCLI(t, "-b", server.URL, "-v", "--no-color", "get", "/user")
	require.NoError(t, err)
	assert.Contains(t, stderr, "> GET "+server.URL+"/user")
	assert.Contains(t, stdout, "200 OK")
	assert.Contains(t, stdout, "Content-Type: application/json")
}

func TestRequest_JSONLog(t *testing.T) {
	server := echoServer(t)

	_, stderr, err := runCLI(t, "-b", server.URL, "--log-format", "json", "get", "/user")
	require.NoError(t, err)

	entry := decode(t, strings.TrimSpace(stderr))
	assert.Equal(t, "response", entry["message"])
	assert.Equal(t, float64(200), entry["status"])
}

func TestRequest_Errors(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"connection refused", []string{"-b", closedURL, "get", "/"}, ExitNetworkError},
		{"bad scheme", []string{"-b", "ftp://example.com", "get", "/"}, ExitConfigError},
		{"bad parameter", []string{"-b", "http://localhost", "get", "/", "-p", "novalue"}, ExitUsageError},
		{"bad header", []string{"-b", "http://localhost", "-H", "nocolon", "get", "/"}, ExitUsageError},
		{"unknown flag", []string{"get", "/", "--data", "x"}, ExitUsageError},
		{"missing argument", []string{"get"}, ExitUsageError},
		{"data with params", []string{"-b", "http://localhost", "post", "/", "-d", "x", "-p", "a=1"}, ExitUsageError},
		{"missing config", []string{"--config", "/nonexistent/restclient.json", "get", "/"}, ExitConfigError},
		{"missing env file", []string{"--env-file", "/nonexistent/.env", "get", "/"}, ExitConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCode(err), err.Error())
		})
	}
}

func TestRequest_EnvFile(t *testing.T) {
	server := echoServer(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RESTCLIENT_BASE_URL="+server.URL+"\nRESTCLIENT_HEADER_X_TOKEN=fromenv\n"), 0644))

	stdout, _, err := runCLI(t, "--env-file", envFile, "get", "/x")
	require.NoError(t, err)
	assert.Equal(t, "fromenv", decode(t, stdout)["token"])
}

func TestRequest_Watch(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
	}))
	defer server.Close()
	last := func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(bodies) == 0 {
			return ""
		}
		return bodies[len(bodies)-1]
	}

	old := WatchDebounceDelay
	WatchDebounceDelay = 10 * time.Millisecond
	defer func() { WatchDebounceDelay = old }()

	dataFile := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(dataFile, []byte(`{"v":1}`), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs([]string{"-b", server.URL, "post", "/doc", "-d", "@" + dataFile, "--watch"})

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return last() == `{"v":1}` }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(dataFile, []byte(`{"v":2}`), 0644))
	require.Eventually(t, func() bool { return last() == `{"v":2}` }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Contains(t, stderr.String(), "File changed: "+dataFile)
}

func TestRequest_WatchWithoutInputs(t *testing.T) {
	_, _, err := runCLI(t, "-b", "http://localhost", "get", "/x", "--watch")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("doc")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		fmt.Fprintf(w, "%s|%s|%s|%s", header.Filename, content, r.FormValue("owner"), header.Header.Get("Content-Type"))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	stdout, _, err := runCLI(t, "-b", server.URL, "upload", "/files", "-f", "doc="+path, "-p", "owner=42")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "notes.txt|hello|42|text/plain"), stdout)
}

func TestUpload_Errors(t *testing.T) {
	_, _, err := runCLI(t, "-b", "http://localhost", "upload", "/files")
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, _, err = runCLI(t, "-b", "http://localhost", "upload", "/files", "-f", "nopath")
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, _, err = runCLI(t, "-b", "http://localhost", "upload", "/files", "-f", "doc=/nonexistent/file")
	require.Error(t, err)
	assert.ErrorIs(t, err, restclient.ErrUpload)
	assert.Equal(t, ExitRequestFailure, exitCode(err))
}

func TestBench(t *testing.T) {
	server := echoServer(t)

	stdout, _, err := runCLI(t, "-b", server.URL, "--no-color", "bench", "get", "/x", "-n", "5", "--concurrency", "2", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Bench: GET /x")
	assert.Contains(t, stdout, "BENCH SUMMARY")
	assert.Contains(t, stdout, "Total:      5 requests")
}

func TestBench_JSONAndThresholds(t *testing.T) {
	server := echoServer(t)

	stdout, stderr, err := runCLI(t, "-b", server.URL, "bench", "post", "/x", "-p", "a=1", "-n", "3", "--json", "--threshold", "p99<1ns")
	require.Error(t, err)
	assert.Equal(t, ExitRequestFailure, exitCode(err))
	assert.Contains(t, stderr, "3 / 3 requests")

	out := decode(t, stdout)
	assert.Equal(t, float64(3), out["requests"].(map[string]any)["total"])
	thresholds := out["thresholds"].([]any)
	require.Len(t, thresholds, 1)
	assert.Equal(t, false, thresholds[0].(map[string]any)["passed"])
}

func TestBench_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"bench", "get", "/x", "-n", "0"},
		{"bench", "get", "/x", "--threshold", "p95>1s"},
		{"bench", "get", "/x", "-d", "body"},
	} {
		_, _, err := runCLI(t, append([]string{"-b", "http://localhost"}, args...)...)
		require.Error(t, err, args)
		assert.Equal(t, ExitUsageError, exitCode(err), args)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restclient.json")

	stdout, _, err := runCLI(t, "config", "init", path, "--base-url", "http://api.local")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created: "+path)

	_, _, err = runCLI(t, "config", "init", path)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, _, err = runCLI(t, "config", "init", path, "--force")
	require.NoError(t, err)

	stdout, _, err = runCLI(t, "--config", path, "--user", "admin:secret", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "baseUrl: http://api.local")
	assert.Contains(t, stdout, "admin:****")
	assert.NotContains(t, stdout, "secret")

	stdout, _, err = runCLI(t, "--config", path, "-o", "json", "config", "show")
	require.NoError(t, err)
	assert.Equal(t, "http://api.local", decode(t, stdout)["baseUrl"])
}

func TestVersion(t *testing.T) {
	stdout, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "restclient version dev")
}

func TestCompletion(t *testing.T) {
	stdout, _, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "restclient")

	_, _, err = runCLI(t, "completion", "tcsh")
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"explicit", withExitCode(ExitRequestFailure, errors.New("x")), ExitRequestFailure},
		{"invalid url", &restclient.ConfigError{URL: "x", Err: restclient.ErrInvalidURL}, ExitConfigError},
		{"transport", &restclient.TransportError{Op: "open", Err: errors.New("refused")}, ExitNetworkError},
		{"upload", &restclient.UploadError{Field: "f", Err: restclient.ErrSizeMismatch}, ExitRequestFailure},
		{"wrapped", fmt.Errorf("ctx: %w", &restclient.TransportError{Op: "read", Err: errors.New("eof")}), ExitNetworkError},
		{"other", errors.New("unknown command"), ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
