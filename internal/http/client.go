package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// Client is the HTTP transport used by API clients. Its options are fixed at
// construction; per-call settings travel on the apireq.Request.
type Client struct {
	baseURL        string
	httpClient     *retryablehttp.Client
	logger         apireq.Logger
	debug          bool
	userAgent      string
	defaultHeaders http.Header

	mu          sync.RWMutex
	middlewares apireq.Middlewares
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger apireq.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			return
		}

		c.logger = logger
		c.httpClient.Logger = newLeveledLogger(logger)
	}
}

// WithDebug enables request and response debug logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header sent when the request has none.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout sets the per-attempt timeout of the underlying http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithRetryConfig enables transport retries on connection errors, 429 and
// 5xx responses.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithDefaultHeaders sets headers sent with every request. Request headers
// with the same name win.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for key, value := range headers {
			c.defaultHeaders.Set(key, value)
		}
	}
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mws ...apireq.Middleware) Option {
	return func(c *Client) {
		c.middlewares = c.middlewares.With(mws...)
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient.HTTPClient = client
		}
	}
}

// NewClient creates a new HTTP client. Relative request URLs are resolved
// against baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil
	// Keep non-2xx responses readable once retries are exhausted.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     retryClient,
		logger:         apireq.NopLogger(),
		defaultHeaders: http.Header{constants.HeaderAccept: []string{constants.ContentTypeJSON}},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// AddMiddleware appends middleware to the chain.
func (c *Client) AddMiddleware(mw apireq.Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.middlewares = c.middlewares.With(mw)
}

// Middlewares returns the registered middleware in order.
func (c *Client) Middlewares() apireq.Middlewares {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.middlewares.With()
}

// Do sends req through the middleware chain. A non-2xx response is returned
// together with a *StatusError.
func (c *Client) Do(ctx context.Context, req *apireq.Request) (*apireq.Response, error) {
	handler := c.Middlewares().Then(c.dispatch)

	resp, err := handler(ctx, req)
	if err != nil {
		return resp, err
	}

	if !resp.IsSuccess() {
		return resp, &StatusError{Response: resp}
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{Method: http.MethodGet, URL: path, Query: query})
}

// Post performs a form-encoded POST request.
func (c *Client) Post(ctx context.Context, path string, form url.Values) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{Method: http.MethodPost, URL: path, Form: nonNilValues(form)})
}

// PostBody performs a POST request with a raw body.
func (c *Client) PostBody(ctx context.Context, path string, body []byte) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{Method: http.MethodPost, URL: path, Body: body})
}

// Put performs a form-encoded PUT request.
func (c *Client) Put(ctx context.Context, path string, form url.Values) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{Method: http.MethodPut, URL: path, Form: nonNilValues(form)})
}

// Patch performs a form-encoded PATCH request.
func (c *Client) Patch(ctx context.Context, path string, form url.Values) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{Method: http.MethodPatch, URL: path, Form: nonNilValues(form)})
}

// Delete performs a form-encoded DELETE request.
func (c *Client) Delete(ctx context.Context, path string, form url.Values) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{Method: http.MethodDelete, URL: path, Form: nonNilValues(form)})
}

// JSON performs a POST request with body encoded as JSON. A []byte or string
// body is sent as-is.
func (c *Client) JSON(ctx context.Context, path string, body interface{}) (*apireq.Response, error) {
	req, err := NewJSONRequest(path, body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

// Upload performs a multipart POST request.
func (c *Client) Upload(ctx context.Context, path string, files []apireq.FilePart, form, query url.Values) (*apireq.Response, error) {
	return c.Do(ctx, &apireq.Request{
		Method: http.MethodPost,
		URL:    path,
		Query:  query,
		Form:   form,
		Files:  files,
	})
}

// NewJSONRequest builds a JSON POST request. HTML characters are not escaped.
func NewJSONRequest(path string, body interface{}) (*apireq.Request, error) {
	var payload []byte

	switch typed := body.(type) {
	case []byte:
		payload = typed
	case string:
		payload = []byte(typed)
	default:
		var buf bytes.Buffer

		encoder := json.NewEncoder(&buf)
		encoder.SetEscapeHTML(false)

		err := encoder.Encode(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		payload = bytes.TrimRight(buf.Bytes(), "\n")
	}

	return &apireq.Request{
		Method:  http.MethodPost,
		URL:     path,
		Body:    payload,
		Headers: http.Header{constants.HeaderContentType: []string{constants.ContentTypeJSON}},
	}, nil
}

func (c *Client) dispatch(ctx context.Context, req *apireq.Request) (*apireq.Response, error) {
	target, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range c.defaultHeaders {
		httpReq.Header[key] = append([]string(nil), values...)
	}

	if c.userAgent != "" {
		httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)
	}

	if contentType != "" {
		httpReq.Header.Set(constants.HeaderContentType, contentType)
	}

	for key, values := range req.Headers {
		httpReq.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	start := time.Now()

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    redactURL(target),
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":   httpResp.StatusCode,
			"duration": time.Since(start).String(),
			"bytes":    len(respBody),
		})
	}

	return &apireq.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) buildURL(req *apireq.Request) (string, error) {
	parsed, err := url.Parse(ResolveURL(c.baseURL, req.URL))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", req.URL, err)
	}

	if len(req.Query) > 0 {
		query := parsed.Query()
		for key, values := range req.Query {
			query[key] = append([]string(nil), values...)
		}

		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

// ResolveURL joins path to base unless path is already absolute.
func ResolveURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	if path == "" {
		return base
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func encodeBody(req *apireq.Request) (interface{}, string, error) {
	switch {
	case len(req.Files) > 0:
		return encodeMultipart(req.Files, req.Form)
	case req.Form != nil:
		return []byte(req.Form.Encode()), constants.ContentTypeForm, nil
	case req.Body != nil:
		return req.Body, "", nil
	default:
		return nil, "", nil
	}
}

func encodeMultipart(files []apireq.FilePart, form url.Values) ([]byte, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	for _, file := range files {
		err := writeFilePart(writer, file)
		if err != nil {
			return nil, "", err
		}
	}

	for _, key := range sortedKeys(form) {
		for _, value := range form[key] {
			err := writer.WriteField(key, value)
			if err != nil {
				return nil, "", fmt.Errorf("failed to write form field %s: %w", key, err)
			}
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, file apireq.FilePart) error {
	name := file.FileName
	if name == "" {
		name = filepath.Base(file.Path)
	}

	part, err := writer.CreateFormFile(file.Field, name)
	if err != nil {
		return fmt.Errorf("failed to create form file %s: %w", file.Field, err)
	}

	if file.Content != nil {
		_, err = part.Write(file.Content)
		if err != nil {
			return fmt.Errorf("failed to write form file %s: %w", file.Field, err)
		}

		return nil
	}

	source, err := os.Open(filepath.Clean(file.Path))
	if err != nil {
		return fmt.Errorf("failed to open upload file: %w", err)
	}

	defer func() { _ = source.Close() }()

	_, err = io.Copy(part, source)
	if err != nil {
		return fmt.Errorf("failed to read upload file %s: %w", file.Path, err)
	}

	return nil
}

func nonNilValues(values url.Values) url.Values {
	if values == nil {
		return url.Values{}
	}

	return values
}

// redactURL hides the gateway token in logged URLs.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	if query.Has(constants.AccessTokenParam) {
		query.Set(constants.AccessTokenParam, constants.MaskedSecret)
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}
