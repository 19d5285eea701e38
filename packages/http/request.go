package http

import (
	"fmt"
	"strings"
)

const (
	MethodGet    = "GET"
	MethodHead   = "HEAD"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

const (
	// FormURLEncoded is the content type of parameter-encoded bodies
	FormURLEncoded = "application/x-www-form-urlencoded;charset=UTF-8"
	// MultipartFormData is the base content type of file uploads
	MultipartFormData = "multipart/form-data"
	// OctetStream is the content type used for uploads that do not declare one
	OctetStream = "application/octet-stream"
)

// Request describes a single HTTP call before it is executed. Build it with
// one of the verb constructors; the client never modifies it.
type Request struct {
	Method      string
	Path        string
	ContentType string
	// Accept is the Accept header. Empty means the client default.
	Accept  string
	Body    []byte
	Headers map[string]string
}

type RequestOption func(*Request)

// WithAccept overrides the client's default Accept header for one request.
func WithAccept(accept string) RequestOption {
	return func(r *Request) {
		r.Accept = accept
	}
}

func WithContentType(contentType string) RequestOption {
	return func(r *Request) {
		r.ContentType = contentType
	}
}

// WithHeader adds a header that is applied after the client's headers.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithQuery appends params to the query string of the path. Unlike the
// params argument of NewPost and NewPut it puts parameters in the URL, so a
// POST or PUT can carry both a query string and a body.
func WithQuery(params *ParameterMap) RequestOption {
	return func(r *Request) {
		r.Path = appendQuery(r.Path, params)
	}
}

// NewGet builds a GET request. Parameters are encoded into the query string.
func NewGet(path string, params *ParameterMap, opts ...RequestOption) *Request {
	return newQueryRequest(MethodGet, path, params, opts)
}

// NewHead builds a HEAD request. Parameters are encoded into the query string.
func NewHead(path string, params *ParameterMap, opts ...RequestOption) *Request {
	return newQueryRequest(MethodHead, path, params, opts)
}

// NewDelete builds a DELETE request. Parameters are encoded into the query string.
func NewDelete(path string, params *ParameterMap, opts ...RequestOption) *Request {
	return newQueryRequest(MethodDelete, path, params, opts)
}

// NewPost builds a POST request whose body is the URL-encoded params.
func NewPost(path string, params *ParameterMap, opts ...RequestOption) *Request {
	return newFormRequest(MethodPost, path, params, opts)
}

// NewPut builds a PUT request whose body is the URL-encoded params.
func NewPut(path string, params *ParameterMap, opts ...RequestOption) *Request {
	return newFormRequest(MethodPut, path, params, opts)
}

// NewRawPost builds a POST request carrying an opaque body.
func NewRawPost(path, contentType string, body []byte, opts ...RequestOption) *Request {
	return newRawRequest(MethodPost, path, contentType, body, opts)
}

// NewRawPut builds a PUT request carrying an opaque body.
func NewRawPut(path, contentType string, body []byte, opts ...RequestOption) *Request {
	return newRawRequest(MethodPut, path, contentType, body, opts)
}

func newQueryRequest(method, path string, params *ParameterMap, opts []RequestOption) *Request {
	r := &Request{
		Method:      method,
		Path:        appendQuery(path, params),
		ContentType: FormURLEncoded,
	}
	return r.apply(opts)
}

func newFormRequest(method, path string, params *ParameterMap, opts []RequestOption) *Request {
	r := &Request{
		Method:      method,
		Path:        path,
		ContentType: FormURLEncoded,
	}
	if !params.IsEmpty() {
		r.Body = params.EncodeBytes()
	}
	return r.apply(opts)
}

func newRawRequest(method, path, contentType string, body []byte, opts []RequestOption) *Request {
	r := &Request{
		Method:      method,
		Path:        path,
		ContentType: contentType,
	}
	if len(body) > 0 {
		r.Body = append([]byte(nil), body...)
	}
	return r.apply(opts)
}

func (r *Request) apply(opts []RequestOption) *Request {
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasBody reports whether the request will write a body.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

func appendQuery(path string, params *ParameterMap) string {
	if params.IsEmpty() {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}
