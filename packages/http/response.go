package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// StatusNoResponse is the status of a Response that was synthesized locally
// because the server never answered.
const StatusNoResponse = -1

type Response struct {
	StatusCode int
	Status     string
	// URL is the final request URL, after redirects
	URL      string
	Headers  http.Header
	Body     []byte
	Duration time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// JSONPath extracts a value from a JSON body using gjson path syntax.
func (r *Response) JSONPath(path string) (gjson.Result, bool) {
	if !gjson.ValidBytes(r.Body) {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(r.Body, path)
	return res, res.Exists()
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Values returns every value of a header, in the order received.
func (r *Response) Values(key string) []string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json")
}

// Received reports whether the server produced this response.
func (r *Response) Received() bool {
	return r.StatusCode > 0
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

func noResponse(url string, err error, duration time.Duration) *Response {
	resp := &Response{
		StatusCode: StatusNoResponse,
		URL:        url,
		Duration:   duration,
	}
	if err != nil {
		resp.Body = []byte(err.Error())
	}
	return resp
}
