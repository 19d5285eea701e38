package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// Result is the single value delivered by the Async methods.
type Result struct {
	Response *Response
	Err      error
}

// Execute runs req against the client's base URL. It makes exactly one
// attempt.
//
// A response with any status, including 4xx and 5xx, is returned without an
// error. Failures to reach the server return a *TransportError, whose
// Response field holds a synthesized response with StatusNoResponse unless
// the failure happened while writing the body. An unusable URL returns a
// *ConfigError before any I/O.
func (c *Client) Execute(req *Request) (*Response, error) {
	return c.execute(req, nil)
}

// ExecuteAsync runs Execute on a new goroutine. The returned channel yields
// exactly one Result and is then closed.
func (c *Client) ExecuteAsync(req *Request) <-chan Result {
	return goAsync(func() (*Response, error) {
		return c.Execute(req)
	})
}

func goAsync(fn func() (*Response, error)) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		resp, err := fn()
		ch <- Result{Response: resp, Err: err}
	}()
	return ch
}

func (c *Client) execute(req *Request, upload *MultipartBody) (*Response, error) {
	c.notifySending(req)
	resp, err := c.roundTrip(req, upload)
	c.finish(req, resp, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(req *Request, upload *MultipartBody) (*Response, error) {
	start := time.Now()
	headers := c.Headers()

	target, err := c.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	conn, err := c.transport.Open(target)
	if err != nil {
		return c.transportFailure("open", req.Method, target, err, start)
	}
	defer conn.Close()

	opts := PrepareOptions{
		Method:           req.Method,
		ContentType:      req.ContentType,
		Accept:           req.Accept,
		ConnectTimeout:   c.connectTimeout,
		ReadWriteTimeout: c.readWriteTimeout,
		ContentLength:    int64(len(req.Body)),
	}
	if opts.Accept == "" {
		opts.Accept = c.accept
	}
	if upload != nil {
		opts.ContentType = upload.ContentType()
		opts.ContentLength = upload.ContentLength()
	}

	if err := c.transport.Prepare(conn, opts); err != nil {
		return c.transportFailure("prepare", req.Method, target, err, start)
	}
	for k, v := range headers {
		conn.Header().Set(k, v)
	}
	for k, v := range req.Headers {
		conn.Header().Set(k, v)
	}
	if c.aws != nil {
		payload := req.Body
		if upload != nil {
			payload = nil
		}
		if err := signAWS(conn, *c.aws, payload, upload != nil, time.Now()); err != nil {
			return c.transportFailure("prepare", req.Method, target, err, start)
		}
	}

	if c.logger.Enabled() {
		c.logger.LogRequest(conn, logContent(req))
	}

	if req.HasBody() || upload != nil {
		if err := c.writeBody(conn, req, upload); err != nil {
			var ue *UploadError
			if errors.As(err, &ue) {
				return nil, err
			}
			// The server may answer and hang up before taking the whole
			// body; its answer still wins over the broken write.
			if in, ierr := c.transport.OpenInput(conn); ierr == nil && in != nil {
				return readIncoming(in, req.Method, target, start)
			}
			return nil, &TransportError{Op: "write", URL: target.String(), Err: err}
		}
	}

	in, err := c.transport.OpenInput(conn)
	if err != nil {
		return c.transportFailure("read", req.Method, target, err, start)
	}
	return readIncoming(in, req.Method, target, start)
}

func (c *Client) writeBody(conn Connection, req *Request, upload *MultipartBody) error {
	out, err := c.transport.OpenOutput(conn)
	if err != nil {
		return err
	}

	if upload != nil {
		_, err = upload.WriteTo(out)
	} else {
		err = c.transport.WriteStream(out, req.Body)
	}

	if err != nil {
		if ce, ok := out.(interface{ CloseWithError(error) error }); ok {
			ce.CloseWithError(err)
		} else {
			out.Close()
		}
		return err
	}
	return out.Close()
}

// transportFailure classifies an error raised by the transport. A
// *ProtocolError still carries the server's answer and becomes a response.
func (c *Client) transportFailure(op, method string, target *url.URL, err error, start time.Time) (*Response, error) {
	var pe *ProtocolError
	if errors.As(err, &pe) && pe.Incoming != nil {
		return readIncoming(pe.Incoming, method, target, start)
	}

	return nil, &TransportError{
		Op:       op,
		URL:      target.String(),
		Err:      err,
		Response: noResponse(target.String(), err, time.Since(start)),
	}
}

// maxBodyPrealloc caps how much of a declared Content-Length is allocated
// before any byte has arrived.
const maxBodyPrealloc = 1 << 20

// readBody reads the body to the end. A declared length only sizes the
// initial buffer; a body shorter than declared is io.ErrUnexpectedEOF.
func readBody(in *Incoming) ([]byte, error) {
	if in.ContentLength <= 0 {
		return io.ReadAll(in.Body)
	}

	var buf bytes.Buffer
	buf.Grow(int(min(in.ContentLength, maxBodyPrealloc)))
	if _, err := io.Copy(&buf, io.LimitReader(in.Body, in.ContentLength)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) < in.ContentLength {
		return nil, io.ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}

func readIncoming(in *Incoming, method string, target *url.URL, start time.Time) (*Response, error) {
	var body []byte
	if in.Body != nil {
		defer in.Body.Close()
		if method != MethodHead {
			var err error
			body, err = readBody(in)
			if err != nil {
				return nil, &TransportError{
					Op:       "read",
					URL:      target.String(),
					Err:      err,
					Response: noResponse(target.String(), err, time.Since(start)),
				}
			}
		}
	}

	finalURL := in.URL
	if finalURL == "" {
		finalURL = target.String()
	}
	headers := in.Header
	if headers == nil {
		headers = make(map[string][]string)
	}

	return &Response{
		StatusCode: in.StatusCode,
		Status:     in.Status,
		URL:        finalURL,
		Headers:    headers,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

// finish reports the single outcome of a request to the logger, the
// observers and the transport.
func (c *Client) finish(req *Request, resp *Response, err error) {
	observed := resp
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			observed = te.Response
		}
		if c.logger.Enabled() {
			c.logger.Log(err.Error())
		}
	}
	if c.logger.Enabled() {
		c.logger.LogResponse(observed)
	}

	switch {
	case err == nil && resp.IsSuccess():
		c.notify("OnSuccess", func(o Observer) { o.OnSuccess(req, resp) })
	default:
		c.notify("OnFailure", func(o Observer) { o.OnFailure(req, observed, err) })
	}
	c.notify("OnComplete", func(o Observer) { o.OnComplete(req, observed, err) })

	if err != nil && c.transport != nil {
		c.transport.OnError(err)
	}
}

func (c *Client) notifySending(req *Request) {
	c.notify("OnSending", func(o Observer) { o.OnSending(req) })
}

func (c *Client) notify(hook string, fn func(Observer)) {
	for _, o := range c.observers {
		func() {
			defer func() {
				if r := recover(); r != nil && c.logger.Enabled() {
					c.logger.Log(fmt.Sprintf("observer %s panicked: %v", hook, r))
				}
			}()
			fn(o)
		}()
	}
}

// logContent is the body as it is shown in request logs.
func logContent(req *Request) string {
	if !req.HasBody() {
		return ""
	}
	if strings.HasPrefix(req.ContentType, "application/x-www-form-urlencoded") {
		if decoded, err := url.QueryUnescape(string(req.Body)); err == nil {
			return decoded
		}
	}
	return string(req.Body)
}
