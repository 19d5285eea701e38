package cmd

import (
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restclient/packages/core/config"
	"github.com/abdul-hamid-achik/restclient/packages/http"
	"github.com/abdul-hamid-achik/restclient/packages/output"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app holds the global flags shared by every command.
type app struct {
	configPath     string
	envFile        string
	baseURL        string
	accept         string
	headers        []string
	user           string
	connectTimeout time.Duration
	timeout        time.Duration
	insecure       bool
	http2          bool
	proxy          string
	verbose        bool
	noColor        bool
	logFormat      string
	output         string

	stdout io.Writer
	stderr io.Writer
}

func Execute(v, bt string) {
	version = v
	buildTime = bt

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "restclient",
		Short: "Call REST endpoints from the command line",
		Long: `restclient sends form-encoded, raw and multipart requests to a REST
service and prints the response.

Examples:
  restclient --base-url http://localhost:8080/api get /users -p page=2
  restclient post /users -p name=Arsene -p age=43
  restclient put /users/1 --data '{"name":"x"}' --content-type application/json
  restclient upload /files -f avatar=./me.png -p owner=1
  restclient bench get /health -n 1000 --rate 200 --concurrency 20`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default: .restclient.json, restclient.json, .restclient.yaml or .restclient.yml)")
	flags.StringVar(&a.envFile, "env-file", "", "Load RESTCLIENT_* variables from a .env file")
	flags.StringVarP(&a.baseURL, "base-url", "b", "", "Base URL every path is resolved against")
	flags.StringVar(&a.accept, "accept", "", "Default Accept header (default application/json)")
	flags.StringArrayVarP(&a.headers, "header", "H", nil, "Default header as 'Name: value' (repeatable)")
	flags.StringVarP(&a.user, "user", "u", "", "Basic auth credentials as user:password")
	flags.DurationVar(&a.connectTimeout, "connect-timeout", 0, "Connection timeout (default 2s)")
	flags.DurationVar(&a.timeout, "timeout", 0, "Read/write timeout (default 8s)")
	flags.BoolVarP(&a.insecure, "insecure", "k", false, "Disable TLS certificate validation")
	flags.BoolVar(&a.http2, "http2", false, "Negotiate HTTP/2 over TLS")
	flags.StringVar(&a.proxy, "proxy", "", "Proxy URL for all requests")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Trace requests and show response headers")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&a.logFormat, "log-format", "", "Request log format: console or json")
	flags.StringVarP(&a.output, "output", "o", "", "Result format: console or json")

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodPost, http.MethodPut} {
		root.AddCommand(newRequestCmd(a, method))
	}
	root.AddCommand(
		newUploadCmd(a),
		newBenchCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
		newCompletionCmd(),
	)

	return root
}

// settings resolves the effective configuration: file, then environment,
// then flags the user set explicitly.
func (a *app) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, configError(err)
	}

	vars := make(map[string]string)
	if a.envFile != "" {
		dotenv, err := config.LoadDotEnv(a.envFile)
		if err != nil {
			return nil, configError(err)
		}
		maps.Copy(vars, dotenv)
	}
	// The process environment wins over the .env file.
	maps.Copy(vars, config.SystemEnv())

	cfg, err = cfg.ApplyEnv(vars)
	if err != nil {
		return nil, configError(err)
	}

	overlay, err := a.flagOverlay(cmd)
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(overlay)

	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

func (a *app) flagOverlay(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	overlay := &config.Config{
		BaseURL:   a.baseURL,
		Accept:    a.accept,
		User:      a.user,
		Proxy:     a.proxy,
		LogFormat: a.logFormat,
		Output:    a.output,
	}

	if flags.Changed("connect-timeout") {
		overlay.ConnectTimeout = int(a.connectTimeout.Milliseconds())
	}
	if flags.Changed("timeout") {
		overlay.Timeout = int(a.timeout.Milliseconds())
	}
	if flags.Changed("insecure") {
		overlay.Insecure = config.BoolPtr(a.insecure)
	}
	if flags.Changed("http2") {
		overlay.HTTP2 = config.BoolPtr(a.http2)
	}
	if flags.Changed("verbose") {
		overlay.Verbose = config.BoolPtr(a.verbose)
	}
	if flags.Changed("no-color") {
		overlay.NoColor = config.BoolPtr(a.noColor)
	}

	if len(a.headers) > 0 {
		overlay.Headers = make(map[string]string, len(a.headers))
		for _, h := range a.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, usageError(fmt.Errorf("invalid header %q (expected 'Name: value')", h))
			}
			overlay.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	return overlay, nil
}

// newClient builds a client from cfg. extra options are applied last.
func (a *app) newClient(cfg *config.Config, extra ...http.ClientOption) (*http.Client, error) {
	transport, err := http.NewHTTPTransport(
		http.WithMaxConnsPerHost(cfg.MaxConnections),
		http.WithInsecureSkipVerify(cfg.GetInsecure()),
		http.WithHTTP2(cfg.GetHTTP2()),
		http.WithProxy(cfg.Proxy),
		http.WithPinnedCertificate(cfg.PinnedCertificate),
	)
	if err != nil {
		return nil, configError(err)
	}

	opts := []http.ClientOption{
		http.WithTransport(transport),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithLogger(a.newLogger(cfg)),
	}
	if cfg.Accept != "" {
		opts = append(opts, http.WithDefaultAccept(cfg.Accept))
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, http.WithConnectTimeout(cfg.ConnectTimeoutDuration()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, http.WithReadWriteTimeout(cfg.TimeoutDuration()))
	}
	if user, pass, ok := cfg.Credentials(); ok {
		opts = append(opts, http.WithBasicAuth(user, pass))
	}
	if cfg.AWS != nil {
		opts = append(opts, http.WithAWSSigV4(cfg.AWS.Credentials()))
	}
	opts = append(opts, extra...)

	return http.NewClient(cfg.BaseURL, opts...), nil
}

// newLogger traces requests on stderr. Console tracing is opt-in through
// --verbose; JSON logging is filtered by the configured level instead.
func (a *app) newLogger(cfg *config.Config) http.RequestLogger {
	if cfg.LogFormat == "json" {
		level := cfg.LogLevel
		if cfg.GetVerbose() {
			level = "debug"
		}
		return output.NewLogrusLogger(output.NewJSONLogger(a.stderr, level))
	}
	if !cfg.GetVerbose() {
		return http.NopLogger{}
	}
	return output.NewConsoleLogger(
		output.WithWriter(a.stderr),
		output.WithVerbose(true),
		output.WithNoColor(cfg.GetNoColor()),
	)
}

func (a *app) newFormatter(cfg *config.Config) output.Formatter {
	if cfg.Output == "json" {
		return output.NewJSONFormatter(output.JSONWithWriter(a.stdout))
	}
	return output.NewConsoleFormatter(
		output.WithOutput(a.stdout),
		output.WithShowHeaders(cfg.GetVerbose()),
		output.WithPlain(cfg.GetNoColor()),
	)
}
