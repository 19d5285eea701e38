package http

// Observer is notified about the lifecycle of every request. Hooks are
// called synchronously on the goroutine executing the request and cannot
// change its outcome.
type Observer interface {
	// OnSending is called before the transport is contacted.
	OnSending(req *Request)
	// OnSuccess is called for responses with a 2xx status.
	OnSuccess(req *Request, resp *Response)
	// OnFailure is called for errors and for responses outside 2xx. resp is
	// nil when no response exists.
	OnFailure(req *Request, resp *Response, err error)
	// OnComplete is always called last, exactly once per request.
	OnComplete(req *Request, resp *Response, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Sending  func(req *Request)
	Success  func(req *Request, resp *Response)
	Failure  func(req *Request, resp *Response, err error)
	Complete func(req *Request, resp *Response, err error)
}

func (o ObserverFuncs) OnSending(req *Request) {
	if o.Sending != nil {
		o.Sending(req)
	}
}

func (o ObserverFuncs) OnSuccess(req *Request, resp *Response) {
	if o.Success != nil {
		o.Success(req, resp)
	}
}

func (o ObserverFuncs) OnFailure(req *Request, resp *Response, err error) {
	if o.Failure != nil {
		o.Failure(req, resp, err)
	}
}

func (o ObserverFuncs) OnComplete(req *Request, resp *Response, err error) {
	if o.Complete != nil {
		o.Complete(req, resp, err)
	}
}

