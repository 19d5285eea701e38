package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/restclient/packages/core/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var (
		force   bool
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file with default values",
		Long: `Write a configuration file with default values.

The format follows the extension: .yaml or .yml for YAML, anything else
for JSON. Without an argument .restclient.yaml is created in the current
directory.

Examples:
  restclient config init
  restclient config init --base-url http://localhost:8080/api
  restclient config init restclient.json --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ".restclient.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			path, err := filepath.Abs(path)
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return usageError(fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
				}
			}

			cfg := config.DefaultConfig()
			cfg.BaseURL = baseURL
			cfg.Headers = map[string]string{"User-Agent": "restclient/" + version}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}

			if err := cfg.SaveConfig(path); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			fmt.Fprintf(a.stdout, "Created: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Base URL written to the file")

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging the config file, RESTCLIENT_*
variables and global flags. Output is YAML, or JSON with --output json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.settings(cmd)
			if err != nil {
				return err
			}

			shown := redact(cfg)
			if cfg.Output == "json" {
				encoder := json.NewEncoder(a.stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(shown)
			}
			encoder := yaml.NewEncoder(a.stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(shown); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}

const redacted = "****"

// redact returns a copy of cfg with passwords and AWS secrets masked.
func redact(cfg *config.Config) *config.Config {
	shown := *cfg
	if user, _, ok := cfg.Credentials(); ok && strings.Contains(cfg.User, ":") {
		shown.User = user + ":" + redacted
	}
	if cfg.AWS != nil {
		aws := *cfg.AWS
		if aws.SecretKey != "" {
			aws.SecretKey = redacted
		}
		if aws.SessionToken != "" {
			aws.SessionToken = redacted
		}
		shown.AWS = &aws
	}
	return &shown
}
