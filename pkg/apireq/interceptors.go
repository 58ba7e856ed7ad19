package apireq

import (
	"context"
	"net/http"
	"net/url"
)

// Request represents an outgoing API request that middleware can inspect and
// rewrite.
//
// Body is sent as-is. When Form is set and there are no Files, Form is sent
// url-encoded instead. When Files is set the request is multipart and Form
// fields become plain parts.
type Request struct {
	Method   string
	URL      string
	Query    url.Values
	Headers  http.Header
	Body     []byte
	Form     url.Values
	Files    []FilePart
	Metadata map[string]interface{}
}

// FilePart is one file of a multipart upload. Content wins over Path.
type FilePart struct {
	Field    string
	FileName string
	Path     string
	Content  []byte
}

// Clone returns a deep copy of r so a request can be re-issued after
// middleware mutated the original.
func (r *Request) Clone() *Request {
	out := &Request{
		Method:  r.Method,
		URL:     r.URL,
		Query:   cloneValues(r.Query),
		Headers: r.Headers.Clone(),
		Form:    cloneValues(r.Form),
	}

	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}

	if r.Files != nil {
		out.Files = append([]FilePart(nil), r.Files...)
	}

	if r.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(r.Metadata))
		for key, value := range r.Metadata {
			out.Metadata[key] = value
		}
	}

	return out
}

// SetQuery sets a query parameter, allocating Query when needed.
func (r *Request) SetQuery(key, value string) {
	if r.Query == nil {
		r.Query = url.Values{}
	}

	r.Query.Set(key, value)
}

// SetHeader sets a header, allocating Headers when needed.
func (r *Request) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}

	r.Headers.Set(key, value)
}

// Response represents a received API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// IsClientError reports a 4xx status.
func (r *Response) IsClientError() bool {
	return r.StatusCode >= http.StatusBadRequest && r.StatusCode < http.StatusInternalServerError
}

// Handler sends a request and returns its response.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Middleware wraps the next handler and returns a new handler.
type Middleware func(next Handler) Handler

// Middlewares is a middleware chain builder.
//
// Chain(a, b, c).Then(h) returns a(b(c(h))).
type Middlewares []Middleware

// Chain creates a middleware chain. Nil middlewares are ignored.
func Chain(mws ...Middleware) Middlewares {
	return appendMiddlewares(nil, mws)
}

// With returns a new chain with more appended. The receiver is not modified.
func (mws Middlewares) With(more ...Middleware) Middlewares {
	out := make(Middlewares, 0, len(mws)+len(more))
	out = appendMiddlewares(out, mws)

	return appendMiddlewares(out, more)
}

// Then composes the chain around the final handler.
func (mws Middlewares) Then(final Handler) Handler {
	handler := final
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}

	return handler
}

func appendMiddlewares(dst, src Middlewares) Middlewares {
	for _, mw := range src {
		if mw != nil {
			dst = append(dst, mw)
		}
	}

	return dst
}

func cloneValues(values url.Values) url.Values {
	if values == nil {
		return nil
	}

	out := make(url.Values, len(values))
	for key, list := range values {
		out[key] = append([]string(nil), list...)
	}

	return out
}
