package http

import (
	"encoding/base64"
	"fmt"
	neturl "net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultConnectTimeout bounds establishing the connection
	DefaultConnectTimeout = 2 * time.Second
	// DefaultReadWriteTimeout bounds sending the request and reading the response
	DefaultReadWriteTimeout = 8 * time.Second
	// DefaultAccept is the Accept header sent when a request does not set one
	DefaultAccept = "application/json"
)

// Client executes requests against one base URL. It is safe for concurrent
// use; header changes only affect calls that start afterwards.
type Client struct {
	baseURL          string
	connectTimeout   time.Duration
	readWriteTimeout time.Duration
	accept           string
	maxConns         int
	transport        Transport
	logger           RequestLogger
	observers        []Observer
	aws              *AWSCredentials

	mu      sync.RWMutex
	headers map[string]string
}

type ClientOption func(*Client)

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          baseURL,
		connectTimeout:   DefaultConnectTimeout,
		readWriteTimeout: DefaultReadWriteTimeout,
		accept:           DefaultAccept,
		logger:           NopLogger{},
		headers:          make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		// Only proxy, pinning and HTTP/2 options can make this fail.
		t, _ := NewHTTPTransport(WithMaxConnsPerHost(c.maxConns))
		c.transport = t
	}

	return c
}

func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

func WithReadWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.readWriteTimeout = d
	}
}

// WithDefaultAccept sets the Accept header used by requests that do not
// choose their own.
func WithDefaultAccept(accept string) ClientOption {
	return func(c *Client) {
		c.accept = accept
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.headers["Authorization"] = basicAuthHeader(username, password)
	}
}

// WithTransport replaces the default net/http transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

func WithLogger(l RequestLogger) ClientOption {
	return func(c *Client) {
		if l == nil {
			l = NopLogger{}
		}
		c.logger = l
	}
}

// WithObserver adds an observer. Observers are notified in the order they
// were added.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithMaxConnections limits connections per host on the default transport.
// It has no effect together with WithTransport.
func WithMaxConnections(n int) ClientOption {
	return func(c *Client) {
		c.maxConns = n
	}
}

// WithAWSSigV4 signs every request with AWS Signature Version 4.
func WithAWSSigV4(creds AWSCredentials) ClientOption {
	return func(c *Client) {
		c.aws = &creds
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// BasicAuth sets the Authorization header for all following requests.
func (c *Client) BasicAuth(username, password string) {
	c.SetHeader("Authorization", basicAuthHeader(username, password))
}

func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// ClearHeaders removes every client-wide header, including credentials set
// by BasicAuth.
func (c *Client) ClearHeaders() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = make(map[string]string)
}

// Headers returns a copy of the client-wide headers.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	return headers
}

func (c *Client) Get(path string, params *ParameterMap, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewGet(path, params, opts...))
}

func (c *Client) GetAsync(path string, params *ParameterMap, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewGet(path, params, opts...))
}

func (c *Client) Head(path string, params *ParameterMap, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewHead(path, params, opts...))
}

func (c *Client) HeadAsync(path string, params *ParameterMap, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewHead(path, params, opts...))
}

func (c *Client) Delete(path string, params *ParameterMap, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewDelete(path, params, opts...))
}

func (c *Client) DeleteAsync(path string, params *ParameterMap, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewDelete(path, params, opts...))
}

func (c *Client) Post(path string, params *ParameterMap, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewPost(path, params, opts...))
}

func (c *Client) PostAsync(path string, params *ParameterMap, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewPost(path, params, opts...))
}

func (c *Client) PostRaw(path, contentType string, body []byte, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewRawPost(path, contentType, body, opts...))
}

func (c *Client) PostRawAsync(path, contentType string, body []byte, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewRawPost(path, contentType, body, opts...))
}

func (c *Client) Put(path string, params *ParameterMap, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewPut(path, params, opts...))
}

func (c *Client) PutAsync(path string, params *ParameterMap, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewPut(path, params, opts...))
}

func (c *Client) PutRaw(path, contentType string, body []byte, opts ...RequestOption) (*Response, error) {
	return c.Execute(NewRawPut(path, contentType, body, opts...))
}

func (c *Client) PutRawAsync(path, contentType string, body []byte, opts ...RequestOption) <-chan Result {
	return c.ExecuteAsync(NewRawPut(path, contentType, body, opts...))
}

// PostFiles uploads files and form fields as multipart/form-data. Every file
// stream is closed before PostFiles returns, whatever the outcome.
func (c *Client) PostFiles(path string, files []*UploadFile, params *ParameterMap, opts ...RequestOption) (*Response, error) {
	req := &Request{Method: MethodPost, Path: path, ContentType: MultipartFormData}
	req.apply(opts)

	body, err := NewMultipartBody(params, files)
	if err != nil {
		c.notifySending(req)
		c.finish(req, nil, err)
		return nil, err
	}
	defer body.Close()

	req.ContentType = body.ContentType()
	return c.execute(req, body)
}

func (c *Client) PostFilesAsync(path string, files []*UploadFile, params *ParameterMap, opts ...RequestOption) <-chan Result {
	return goAsync(func() (*Response, error) {
		return c.PostFiles(path, files, params, opts...)
	})
}

// resolve joins the base URL and path. An absolute http(s) path is used as is.
func (c *Client) resolve(path string) (*neturl.URL, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = joinURL(c.baseURL, path)
	}

	if err := ValidateURL(raw); err != nil {
		return nil, &ConfigError{URL: raw, Err: err}
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return nil, &ConfigError{URL: raw, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}
	return u, nil
}

func joinURL(base, path string) string {
	switch {
	case path == "":
		return base
	case strings.HasPrefix(path, "?"):
		return base + path
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	}
	return base + path
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q (only http and https are allowed)", ErrInvalidURL, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrInvalidURL)
	}

	return nil
}

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
