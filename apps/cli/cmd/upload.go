package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restclient/packages/http"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		flags requestFlags
		files []string
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "POST files and parameters as multipart/form-data",
		Long: `POST files and parameters as multipart/form-data.

Examples:
  restclient upload /files -f avatar=./me.png
  restclient upload /documents -f a=./a.pdf -f b=./b.pdf -p owner=42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(files) == 0 {
				return usageError(errors.New("at least one --file is required"))
			}
			cfg, err := a.settings(cmd)
			if err != nil {
				return err
			}
			params, err := parseParams(flags.params)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}

			uploads, err := openUploads(files)
			if err != nil {
				return err
			}

			client, err := a.newClient(cfg)
			if err != nil {
				closeUploads(uploads)
				return err
			}

			// PostFiles closes every stream.
			resp, err := client.PostFiles(args[0], uploads, params, opts...)
			if err != nil {
				return err
			}
			return a.printResponse(cfg, &http.Request{Method: http.MethodPost, Path: args[0]}, resp, flags.query)
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File as field=path (repeatable)")
	cmd.Flags().StringVarP(&flags.query, "query", "q", "", "Print only the value at this gjson path of a JSON response")

	return cmd
}

func openUploads(specs []string) ([]*http.UploadFile, error) {
	uploads := make([]*http.UploadFile, 0, len(specs))
	for _, spec := range specs {
		field, path, ok := strings.Cut(spec, "=")
		if !ok || path == "" {
			closeUploads(uploads)
			return nil, usageError(fmt.Errorf("invalid file %q (expected field=path)", spec))
		}
		upload, err := http.OpenUploadFile(field, path)
		if err != nil {
			closeUploads(uploads)
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func closeUploads(uploads []*http.UploadFile) {
	for _, u := range uploads {
		if c, ok := u.Data.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
