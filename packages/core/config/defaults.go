package config

import "github.com/abdul-hamid-achik/restclient/packages/http"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Accept:         http.DefaultAccept,
		ConnectTimeout: int(http.DefaultConnectTimeout.Milliseconds()),
		Timeout:        int(http.DefaultReadWriteTimeout.Milliseconds()),
		Insecure:       BoolPtr(false),
		HTTP2:          BoolPtr(false),
		Output:         "console",
		LogFormat:      "console",
		LogLevel:       "info",
		Verbose:        BoolPtr(false),
		NoColor:        BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.BaseURL == d.BaseURL &&
		c.Accept == d.Accept &&
		len(c.Headers) == 0 &&
		c.User == d.User &&
		c.ConnectTimeout == d.ConnectTimeout &&
		c.Timeout == d.Timeout &&
		c.MaxConnections == d.MaxConnections &&
		c.GetInsecure() == d.GetInsecure() &&
		c.GetHTTP2() == d.GetHTTP2() &&
		c.Proxy == d.Proxy &&
		c.PinnedCertificate == d.PinnedCertificate &&
		c.AWS == nil &&
		c.Output == d.Output &&
		c.LogFormat == d.LogFormat &&
		c.LogLevel == d.LogLevel &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor()
}
