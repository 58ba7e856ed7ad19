package apireq

import (
	"context"
	"net/http"
	"net/url"
)

// Call methods accepted by API.Call. JSON is a POST with a JSON body and
// UPLOAD is a multipart POST.
const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPatch  = http.MethodPatch
	MethodPut    = http.MethodPut
	MethodDelete = http.MethodDelete
	MethodJSON   = "JSON"
	MethodUpload = "UPLOAD"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// API is a client bound to one upstream service.
type API interface {
	// Call sends a request with one of the Method constants and shapes the
	// unwrapped payload with the service schema.
	Call(ctx context.Context, method, path string, opts ...CallOption) (Result, error)
	Get(ctx context.Context, path string, query url.Values, opts ...CallOption) (Result, error)
	Post(ctx context.Context, path string, form url.Values, opts ...CallOption) (Result, error)
	JSON(ctx context.Context, path string, body interface{}, opts ...CallOption) (Result, error)
	Put(ctx context.Context, path string, form url.Values, opts ...CallOption) (Result, error)
	Patch(ctx context.Context, path string, form url.Values, opts ...CallOption) (Result, error)
	Delete(ctx context.Context, path string, form url.Values, opts ...CallOption) (Result, error)
	Upload(ctx context.Context, path string, files []FilePart, form url.Values, opts ...CallOption) (Result, error)
	Service() Service
}

// CallOptions collects the per-call settings.
type CallOptions struct {
	Query   url.Values
	Form    url.Values
	Body    []byte
	JSON    interface{}
	HasJSON bool
	Files   []FilePart
	Headers http.Header
	Entity  *Schema
}

// CallOption configures a single call.
type CallOption func(*CallOptions)

// NewCallOptions applies opts to empty options.
func NewCallOptions(opts ...CallOption) *CallOptions {
	options := &CallOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithQuery merges query parameters into the call.
func WithQuery(query url.Values) CallOption {
	return func(o *CallOptions) {
		if o.Query == nil {
			o.Query = url.Values{}
		}

		for key, values := range query {
			o.Query[key] = append(o.Query[key], values...)
		}
	}
}

// WithForm merges form fields into the call.
func WithForm(form url.Values) CallOption {
	return func(o *CallOptions) {
		if o.Form == nil {
			o.Form = url.Values{}
		}

		for key, values := range form {
			o.Form[key] = append(o.Form[key], values...)
		}
	}
}

// WithBody sends a raw body instead of form fields.
func WithBody(body []byte) CallOption {
	return func(o *CallOptions) {
		o.Body = body
	}
}

// WithJSON sets the value encoded as the JSON body of a MethodJSON call.
func WithJSON(body interface{}) CallOption {
	return func(o *CallOptions) {
		o.JSON = body
		o.HasJSON = true
	}
}

// WithFile adds a file read from path to a MethodUpload call.
func WithFile(field, path string) CallOption {
	return WithFiles(FilePart{Field: field, Path: path})
}

// WithFileContent adds an in-memory file to a MethodUpload call.
func WithFileContent(field, fileName string, content []byte) CallOption {
	return WithFiles(FilePart{Field: field, FileName: fileName, Content: content})
}

// WithFiles adds files to a MethodUpload call.
func WithFiles(files ...FilePart) CallOption {
	return func(o *CallOptions) {
		o.Files = append(o.Files, files...)
	}
}

// WithHeaders adds headers to this call only.
func WithHeaders(headers http.Header) CallOption {
	return func(o *CallOptions) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}

		for key, values := range headers {
			for _, value := range values {
				o.Headers.Add(key, value)
			}
		}
	}
}

// WithHeader sets one header for this call only.
func WithHeader(key, value string) CallOption {
	return func(o *CallOptions) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}

		o.Headers.Set(key, value)
	}
}

// WithEntity shapes the response with schema when the service declares none.
func WithEntity(schema *Schema) CallOption {
	return func(o *CallOptions) {
		o.Entity = schema
	}
}
