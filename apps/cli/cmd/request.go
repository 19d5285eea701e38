package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restclient/packages/core/config"
	"github.com/abdul-hamid-achik/restclient/packages/http"
)

// requestFlags are shared by the verb, upload and bench commands.
type requestFlags struct {
	params      []string
	headers     []string
	accept      string
	data        string
	contentType string
	query       string
}

func (f *requestFlags) register(cmd *cobra.Command, withBody bool) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "Parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&f.headers, "request-header", "r", nil, "Header for this request only, as 'Name: value' (repeatable)")
	cmd.Flags().StringVarP(&f.accept, "as", "a", "", "Accept header for this request only")
	if withBody {
		cmd.Flags().StringVarP(&f.data, "data", "d", "", "Raw body, or @file to read it from a file")
		cmd.Flags().StringVar(&f.contentType, "content-type", "application/json", "Content type of --data")
	}
}

func (f *requestFlags) options() ([]http.RequestOption, error) {
	var opts []http.RequestOption
	if f.accept != "" {
		opts = append(opts, http.WithAccept(f.accept))
	}
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, usageError(fmt.Errorf("invalid header %q (expected 'Name: value')", h))
		}
		opts = append(opts, http.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}
	return opts, nil
}

// build turns the flags into a request for method and path.
func (f *requestFlags) build(method, path string) (*http.Request, error) {
	params, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}
	opts, err := f.options()
	if err != nil {
		return nil, err
	}

	if f.data != "" {
		if !params.IsEmpty() {
			return nil, usageError(fmt.Errorf("--data and --param cannot be combined"))
		}
		body, err := readData(f.data)
		if err != nil {
			return nil, err
		}
		switch method {
		case http.MethodPost:
			return http.NewRawPost(path, f.contentType, body, opts...), nil
		case http.MethodPut:
			return http.NewRawPut(path, f.contentType, body, opts...), nil
		}
		return nil, usageError(fmt.Errorf("%s requests cannot carry a body", method))
	}

	switch method {
	case http.MethodGet:
		return http.NewGet(path, params, opts...), nil
	case http.MethodHead:
		return http.NewHead(path, params, opts...), nil
	case http.MethodDelete:
		return http.NewDelete(path, params, opts...), nil
	case http.MethodPost:
		return http.NewPost(path, params, opts...), nil
	case http.MethodPut:
		return http.NewPut(path, params, opts...), nil
	}
	return nil, usageError(fmt.Errorf("unsupported method %q", method))
}

func parseParams(raw []string) (*http.ParameterMap, error) {
	params := http.NewParameterMap()
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, usageError(fmt.Errorf("invalid parameter %q (expected key=value)", p))
		}
		params.Add(key, value)
	}
	return params, nil
}

func readData(data string) ([]byte, error) {
	path, ok := strings.CutPrefix(data, "@")
	if !ok {
		return []byte(data), nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, usageError(fmt.Errorf("reading --data file: %w", err))
	}
	return body, nil
}

func newRequestCmd(a *app, method string) *cobra.Command {
	var (
		flags requestFlags
		watch bool
	)
	withBody := method == http.MethodPost || method == http.MethodPut

	use := strings.ToLower(method) + " <path>"
	short := fmt.Sprintf("Send a %s request", method)
	if withBody {
		short += " with form parameters or a raw body"
	} else {
		short += " with query parameters"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Settings and the body are read again on every run so that
			// --watch picks up edits.
			send := func() error {
				cfg, err := a.settings(cmd)
				if err != nil {
					return err
				}
				req, err := flags.build(method, args[0])
				if err != nil {
					return err
				}
				client, err := a.newClient(cfg)
				if err != nil {
					return err
				}

				resp, err := client.Execute(req)
				if err != nil {
					return err
				}
				return a.printResponse(cfg, req, resp, flags.query)
			}

			if !watch {
				return send()
			}
			return watchFiles(cmd.Context(), a.stderr, a.watchedInputs(flags.data), send)
		},
	}
	flags.register(cmd, withBody)
	cmd.Flags().StringVarP(&flags.query, "query", "q", "", "Print only the value at this gjson path of a JSON response")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Send again whenever the --data file, config or env file changes")

	return cmd
}

// printResponse prints resp, or the value at query, and turns a non-2xx
// status into a request failure.
func (a *app) printResponse(cfg *config.Config, req *http.Request, resp *http.Response, query string) error {
	formatter := a.newFormatter(cfg)

	if query != "" {
		value, ok := resp.JSONPath(query)
		if !ok {
			return withExitCode(ExitRequestFailure, fmt.Errorf("no value at %q in response", query))
		}
		formatter.FormatValue(value.String())
	} else {
		formatter.FormatResponse(resp)
	}

	if !resp.IsSuccess() {
		return withExitCode(ExitRequestFailure, fmt.Errorf("%s: %s", req, resp.Status))
	}
	return nil
}
