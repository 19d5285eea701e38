package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/restclient/packages/http"
)

// Config represents the restclient configuration. Timeouts are in
// milliseconds; User is user:password for basic auth; Output and LogFormat
// are console or json.
type Config struct {
	BaseURL           string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Accept            string            `json:"accept,omitempty" yaml:"accept,omitempty"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	User              string            `json:"user,omitempty" yaml:"user,omitempty"`
	ConnectTimeout    int               `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"`
	Timeout           int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxConnections    int               `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
	Insecure          *bool             `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	HTTP2             *bool             `json:"http2,omitempty" yaml:"http2,omitempty"`
	Proxy             string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	PinnedCertificate string            `json:"pinnedCertificate,omitempty" yaml:"pinnedCertificate,omitempty"`
	AWS               *AWSConfig        `json:"aws,omitempty" yaml:"aws,omitempty"`
	Output            string            `json:"output,omitempty" yaml:"output,omitempty"`
	LogFormat         string            `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	LogLevel          string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Verbose           *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor           *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// AWSConfig enables Signature Version 4 signing.
type AWSConfig struct {
	AccessKey    string `json:"accessKey,omitempty" yaml:"accessKey,omitempty"`
	SecretKey    string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
	SessionToken string `json:"sessionToken,omitempty" yaml:"sessionToken,omitempty"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty"`
	Service      string `json:"service,omitempty" yaml:"service,omitempty"`
}

// Credentials converts the section into the signer's credentials.
func (a *AWSConfig) Credentials() http.AWSCredentials {
	return http.AWSCredentials{
		AccessKey:    a.AccessKey,
		SecretKey:    a.SecretKey,
		SessionToken: a.SessionToken,
		Region:       a.Region,
		Service:      a.Service,
	}
}

// BoolPtr returns a pointer to b, for the tri-state fields.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

func (c *Config) GetInsecure() bool {
	return getBool(c.Insecure, false)
}

func (c *Config) GetHTTP2() bool {
	return getBool(c.HTTP2, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Millisecond
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// Credentials splits User into a username and password.
func (c *Config) Credentials() (username, password string, ok bool) {
	if c.User == "" {
		return "", "", false
	}
	username, password, _ = strings.Cut(c.User, ":")
	return username, password, true
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".restclient.json",
	"restclient.json",
	".restclient.yaml",
	".restclient.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile decodes YAML or JSON depending on the extension.
// ${VAR} references are expanded from the process environment first.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Accept != "" {
		result.Accept = other.Accept
	}
	if other.User != "" {
		result.User = other.User
	}
	if other.ConnectTimeout > 0 {
		result.ConnectTimeout = other.ConnectTimeout
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxConnections > 0 {
		result.MaxConnections = other.MaxConnections
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.PinnedCertificate != "" {
		result.PinnedCertificate = other.PinnedCertificate
	}
	if other.AWS != nil {
		aws := *other.AWS
		result.AWS = &aws
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Insecure != nil {
		result.Insecure = other.Insecure
	}
	if other.HTTP2 != nil {
		result.HTTP2 = other.HTTP2
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers into a fresh map so neither input is modified
	if len(c.Headers) > 0 || len(other.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL != "" {
		if err := http.ValidateURL(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("baseUrl: %w", err))
		}
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("connectTimeout must not be negative, got %d", c.ConnectTimeout))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %d", c.Timeout))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("maxConnections must not be negative, got %d", c.MaxConnections))
	}
	if !oneOf(c.Output, "", "console", "json") {
		errs = append(errs, fmt.Errorf("output must be console or json, got %q", c.Output))
	}
	if !oneOf(c.LogFormat, "", "console", "json") {
		errs = append(errs, fmt.Errorf("logFormat must be console or json, got %q", c.LogFormat))
	}
	if c.AWS != nil && (c.AWS.AccessKey == "" || c.AWS.SecretKey == "" || c.AWS.Region == "" || c.AWS.Service == "") {
		errs = append(errs, errors.New("aws requires accessKey, secretKey, region and service"))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// SaveConfig saves the configuration to a file, as YAML when the extension
// asks for it and JSON otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
