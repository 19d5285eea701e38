package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

const (
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Transport performs the connection work for a single request. The client
// calls Open, Prepare, optionally OpenOutput and WriteStream, then OpenInput,
// always from one goroutine per request.
type Transport interface {
	Open(target *url.URL) (Connection, error)
	Prepare(conn Connection, opts PrepareOptions) error
	OpenOutput(conn Connection) (io.WriteCloser, error)
	WriteStream(w io.Writer, body []byte) error
	OpenInput(conn Connection) (*Incoming, error)
	// OnError is advisory. It reports whether err still carries a usable
	// server response.
	OnError(err error) bool
}

// Connection is a request in flight. Header is writable until the body is
// opened or the response is requested.
type Connection interface {
	Method() string
	URL() *url.URL
	Header() http.Header
	Close() error
}

type PrepareOptions struct {
	Method           string
	ContentType      string
	Accept           string
	ConnectTimeout   time.Duration
	ReadWriteTimeout time.Duration
	// ContentLength is the exact body size, 0 for no body and -1 when unknown
	ContentLength int64
}

// Incoming is the raw answer read from a connection.
type Incoming struct {
	StatusCode    int
	Status        string
	URL           string
	Header        http.Header
	ContentLength int64
	Body          io.ReadCloser
}

// HTTPTransport is the default Transport, built on net/http.
type HTTPTransport struct {
	client *http.Client

	maxConnsPerHost int
	insecure        bool
	http2           bool
	proxyURL        string
	pinnedPath      string
}

type TransportOption func(*HTTPTransport)

// WithMaxConnsPerHost limits simultaneous connections to one host. Zero
// means no limit.
func WithMaxConnsPerHost(n int) TransportOption {
	return func(t *HTTPTransport) {
		t.maxConnsPerHost = n
	}
}

// WithInsecureSkipVerify disables TLS certificate validation
func WithInsecureSkipVerify(skip bool) TransportOption {
	return func(t *HTTPTransport) {
		t.insecure = skip
	}
}

// WithPinnedCertificate only accepts servers whose leaf certificate equals
// the PEM encoded certificate stored at path.
func WithPinnedCertificate(path string) TransportOption {
	return func(t *HTTPTransport) {
		t.pinnedPath = path
	}
}

// WithHTTP2 negotiates HTTP/2 over TLS when the server supports it.
func WithHTTP2(enabled bool) TransportOption {
	return func(t *HTTPTransport) {
		t.http2 = enabled
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) TransportOption {
	return func(t *HTTPTransport) {
		t.proxyURL = proxyURL
	}
}

type connectTimeoutKey struct{}

func NewHTTPTransport(opts ...TransportOption) (*HTTPTransport, error) {
	t := &HTTPTransport{}
	for _, opt := range opts {
		opt(t)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialWithConnectTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConns,
		MaxConnsPerHost:     t.maxConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: t.insecure},
	}

	if t.proxyURL != "" {
		proxyURL, err := url.Parse(t.proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if t.pinnedPath != "" {
		verify, err := pinnedVerifier(t.pinnedPath)
		if err != nil {
			return nil, err
		}
		// Chain validation is replaced by the exact match.
		transport.TLSClientConfig.InsecureSkipVerify = true
		transport.TLSClientConfig.VerifyPeerCertificate = verify
	}

	if t.http2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
		}
	}

	t.client = &http.Client{Transport: transport}
	return t, nil
}

func dialWithConnectTimeout(ctx context.Context, network, addr string) (net.Conn, error) {
	d := &net.Dialer{KeepAlive: 30 * time.Second}
	if timeout, ok := ctx.Value(connectTimeoutKey{}).(time.Duration); ok && timeout > 0 {
		d.Timeout = timeout
	}
	return d.DialContext(ctx, network, addr)
}

func pinnedVerifier(path string) (func([][]byte, [][]*x509.Certificate) error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pinned certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM certificate in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pinned certificate: %w", err)
	}
	pinned := sha256.Sum256(cert.Raw)

	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("server presented no certificate")
		}
		got := sha256.Sum256(rawCerts[0])
		if !bytes.Equal(got[:], pinned[:]) {
			return errors.New("server certificate does not match pinned certificate")
		}
		return nil
	}, nil
}

// httpConn wraps a request that is sent on the first call to OpenOutput or
// OpenInput.
type httpConn struct {
	req    *http.Request
	cancel context.CancelFunc

	contentLength int64

	once    sync.Once
	started bool
	done    chan struct{}
	resp    *http.Response
	err     error
}

func (c *httpConn) Method() string      { return c.req.Method }
func (c *httpConn) URL() *url.URL       { return c.req.URL }
func (c *httpConn) Header() http.Header { return c.req.Header }

func (c *httpConn) Close() error {
	if c.cancel != nil {
		defer c.cancel()
	}
	if !c.started {
		return nil
	}
	<-c.done
	if c.resp != nil {
		return c.resp.Body.Close()
	}
	return nil
}

func (t *HTTPTransport) Open(target *url.URL) (Connection, error) {
	req, err := http.NewRequest(http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	return &httpConn{req: req, done: make(chan struct{})}, nil
}

func (t *HTTPTransport) Prepare(conn Connection, opts PrepareOptions) error {
	c, err := asHTTPConn(conn)
	if err != nil {
		return err
	}

	if opts.Method != "" {
		c.req.Method = opts.Method
	}
	if opts.ContentType != "" {
		c.req.Header.Set("Content-Type", opts.ContentType)
	}
	if opts.Accept != "" {
		c.req.Header.Set("Accept", opts.Accept)
	}
	c.req.Header.Set("Accept-Charset", "UTF-8")
	c.contentLength = opts.ContentLength

	ctx := context.WithValue(context.Background(), connectTimeoutKey{}, opts.ConnectTimeout)
	if deadline := opts.ConnectTimeout + opts.ReadWriteTimeout; deadline > 0 {
		ctx, c.cancel = context.WithTimeout(ctx, deadline)
	} else {
		ctx, c.cancel = context.WithCancel(ctx)
	}
	c.req = c.req.WithContext(ctx)
	return nil
}

// OpenOutput starts the round trip with a piped body. Bytes written to the
// returned writer are streamed to the server.
func (t *HTTPTransport) OpenOutput(conn Connection) (io.WriteCloser, error) {
	c, err := asHTTPConn(conn)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	c.req.Body = pr
	if c.contentLength > 0 {
		c.req.ContentLength = c.contentLength
	} else {
		c.req.ContentLength = -1
	}
	t.start(c, pr)
	return pw, nil
}

func (t *HTTPTransport) WriteStream(w io.Writer, body []byte) error {
	_, err := w.Write(body)
	return err
}

func (t *HTTPTransport) OpenInput(conn Connection) (*Incoming, error) {
	c, err := asHTTPConn(conn)
	if err != nil {
		return nil, err
	}

	t.start(c, nil)
	<-c.done
	if c.err != nil {
		return nil, c.err
	}

	finalURL := c.req.URL.String()
	if c.resp.Request != nil && c.resp.Request.URL != nil {
		finalURL = c.resp.Request.URL.String()
	}

	return &Incoming{
		StatusCode:    c.resp.StatusCode,
		Status:        c.resp.Status,
		URL:           finalURL,
		Header:        c.resp.Header,
		ContentLength: c.resp.ContentLength,
		Body:          c.resp.Body,
	}, nil
}

// OnError reports whether err still carries a response the server sent.
func (t *HTTPTransport) OnError(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Incoming != nil && pe.Incoming.StatusCode > 0
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Response != nil && te.Response.Received()
	}
	return false
}

// CloseIdleConnections releases pooled connections.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

func (t *HTTPTransport) start(c *httpConn, body *io.PipeReader) {
	c.once.Do(func() {
		c.started = true
		go func() {
			defer close(c.done)
			c.resp, c.err = t.client.Do(c.req)
			if c.err != nil && body != nil {
				body.CloseWithError(c.err)
			}
		}()
	})
}

func asHTTPConn(conn Connection) (*httpConn, error) {
	c, ok := conn.(*httpConn)
	if !ok {
		return nil, fmt.Errorf("unsupported connection type %T", conn)
	}
	return c, nil
}
