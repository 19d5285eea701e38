package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable ApplyEnv reads.
const EnvPrefix = "RESTCLIENT_"

// LoadDotEnv parses a .env file and returns key-value pairs.
// Supports: KEY=value, KEY="quoted value", KEY='single quoted', # comments
// and an optional leading "export ".
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

// SystemEnv returns the RESTCLIENT_* variables of the process environment.
func SystemEnv() map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, _ := strings.Cut(e, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			result[key] = value
		}
	}
	return result
}

// ApplyEnv overlays RESTCLIENT_* variables onto a copy of c. Keys without
// the prefix are ignored. RESTCLIENT_HEADER_<NAME> sets a default header,
// with underscores in NAME turned into dashes.
func (c *Config) ApplyEnv(vars map[string]string) (*Config, error) {
	overlay := &Config{}

	for key, value := range vars {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}

		var err error
		switch name {
		case "BASE_URL":
			overlay.BaseURL = value
		case "ACCEPT":
			overlay.Accept = value
		case "USER":
			overlay.User = value
		case "CONNECT_TIMEOUT":
			overlay.ConnectTimeout, err = strconv.Atoi(value)
		case "TIMEOUT":
			overlay.Timeout, err = strconv.Atoi(value)
		case "MAX_CONNECTIONS":
			overlay.MaxConnections, err = strconv.Atoi(value)
		case "INSECURE":
			overlay.Insecure, err = parseBool(value)
		case "HTTP2":
			overlay.HTTP2, err = parseBool(value)
		case "PROXY":
			overlay.Proxy = value
		case "PINNED_CERTIFICATE":
			overlay.PinnedCertificate = value
		case "OUTPUT":
			overlay.Output = value
		case "LOG_FORMAT":
			overlay.LogFormat = value
		case "LOG_LEVEL":
			overlay.LogLevel = value
		case "VERBOSE":
			overlay.Verbose, err = parseBool(value)
		case "NO_COLOR":
			overlay.NoColor, err = parseBool(value)
		case "AWS_ACCESS_KEY":
			overlay.aws(c).AccessKey = value
		case "AWS_SECRET_KEY":
			overlay.aws(c).SecretKey = value
		case "AWS_SESSION_TOKEN":
			overlay.aws(c).SessionToken = value
		case "AWS_REGION":
			overlay.aws(c).Region = value
		case "AWS_SERVICE":
			overlay.aws(c).Service = value
		default:
			if header, ok := strings.CutPrefix(name, "HEADER_"); ok && header != "" {
				if overlay.Headers == nil {
					overlay.Headers = make(map[string]string)
				}
				overlay.Headers[strings.ReplaceAll(header, "_", "-")] = value
			}
		}
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return c.Merge(overlay), nil
}

// aws returns the overlay's AWS section, seeded from base so that partial
// overrides keep the remaining fields.
func (c *Config) aws(base *Config) *AWSConfig {
	if c.AWS == nil {
		c.AWS = &AWSConfig{}
		if base.AWS != nil {
			*c.AWS = *base.AWS
		}
	}
	return c.AWS
}

func parseBool(s string) (*bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
