package client

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/apirequests/internal/auth"
	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/internal/http"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// Client implements the apireq.API interface for one upstream service.
type Client struct {
	httpClient *http.Client
	service    apireq.Service
	provider   auth.TokenProvider
	logger     apireq.Logger
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *apireq.Config) []http.Option {
	httpOpts := []http.Option{http.WithLogger(config.LoggerOrNop())}

	if config.HTTP.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.HTTP.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.HTTP.UserAgent))
	}

	if config.HTTP.Timeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTP.Timeout))
	}

	if len(config.HTTP.DefaultHeaders) > 0 {
		httpOpts = append(httpOpts, http.WithDefaultHeaders(config.HTTP.DefaultHeaders))
	}

	if config.HTTP.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.ExtendedRetryWaitMax

		if config.HTTP.RetryWaitMin > 0 {
			retryWaitMin = config.HTTP.RetryWaitMin
		}

		if config.HTTP.RetryWaitMax > 0 {
			retryWaitMax = config.HTTP.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.HTTP.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// New creates a client for service. When provider is non-nil every request is
// signed with the gateway token for the service's gateway prefix. The signing
// middleware runs first, followed by the configured middlewares in order and
// then config.CustomMiddlewares.
func New(config *apireq.Config, service apireq.Service, provider auth.TokenProvider) (*Client, error) {
	if service.Prefix == "" {
		return nil, fmt.Errorf("%w: %s", constants.ErrServicePrefixMissing, service.Name)
	}

	httpClient := http.NewClient(service.Prefix, createHTTPClientOptions(config)...)
	logger := config.LoggerOrNop()

	if provider != nil {
		gateway := config.GatewayFor(service)
		httpClient.AddMiddleware(auth.SignatureMiddleware(provider, gateway.Prefix, logger))
	}

	named, err := config.MiddlewareRegistry().Build(config, config.Middlewares)
	if err != nil {
		return nil, fmt.Errorf("building middlewares for %s: %w", service.Name, err)
	}

	for _, mw := range named.With(config.CustomMiddlewares...) {
		httpClient.AddMiddleware(mw)
	}

	return &Client{
		httpClient: httpClient,
		service:    service,
		provider:   provider,
		logger:     logger,
	}, nil
}

// Service implements apireq.API.Service.
func (c *Client) Service() apireq.Service {
	return c.service
}

// TokenProvider returns the gateway token provider, or nil when signing is off.
func (c *Client) TokenProvider() auth.TokenProvider {
	return c.provider
}

// Call implements apireq.API.Call.
func (c *Client) Call(ctx context.Context, method, path string, opts ...apireq.CallOption) (apireq.Result, error) {
	options := apireq.NewCallOptions(opts...)

	req, err := buildRequest(method, path, options)
	if err != nil {
		return nil, err
	}

	for key, values := range options.Headers {
		req.Headers[key] = append([]string(nil), values...)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, mapError(resp, err)
	}

	return c.shape(resp, options)
}

// Get implements apireq.API.Get.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...apireq.CallOption) (apireq.Result, error) {
	return c.Call(ctx, apireq.MethodGet, path, append([]apireq.CallOption{apireq.WithQuery(query)}, opts...)...)
}

// Post implements apireq.API.Post.
func (c *Client) Post(ctx context.Context, path string, form url.Values, opts ...apireq.CallOption) (apireq.Result, error) {
	return c.Call(ctx, apireq.MethodPost, path, append([]apireq.CallOption{apireq.WithForm(form)}, opts...)...)
}

// JSON implements apireq.API.JSON.
func (c *Client) JSON(ctx context.Context, path string, body interface{}, opts ...apireq.CallOption) (apireq.Result, error) {
	return c.Call(ctx, apireq.MethodJSON, path, append([]apireq.CallOption{apireq.WithJSON(body)}, opts...)...)
}

// Put implements apireq.API.Put.
func (c *Client) Put(ctx context.Context, path string, form url.Values, opts ...apireq.CallOption) (apireq.Result, error) {
	return c.Call(ctx, apireq.MethodPut, path, append([]apireq.CallOption{apireq.WithForm(form)}, opts...)...)
}

// Patch implements apireq.API.Patch.
func (c *Client) Patch(ctx context.Context, path string, form url.Values, opts ...apireq.CallOption) (apireq.Result, error) {
	return c.Call(ctx, apireq.MethodPatch, path, append([]apireq.CallOption{apireq.WithForm(form)}, opts...)...)
}

// Delete implements apireq.API.Delete.
func (c *Client) Delete(ctx context.Context, path string, form url.Values, opts ...apireq.CallOption) (apireq.Result, error) {
	return c.Call(ctx, apireq.MethodDelete, path, append([]apireq.CallOption{apireq.WithForm(form)}, opts...)...)
}

// Upload implements apireq.API.Upload.
func (c *Client) Upload(ctx context.Context, path string, files []apireq.FilePart, form url.Values, opts ...apireq.CallOption) (apireq.Result, error) {
	base := []apireq.CallOption{apireq.WithFiles(files...), apireq.WithForm(form)}

	return c.Call(ctx, apireq.MethodUpload, path, append(base, opts...)...)
}

func buildRequest(method, path string, options *apireq.CallOptions) (*apireq.Request, error) {
	var req *apireq.Request

	switch strings.ToUpper(method) {
	case apireq.MethodGet:
		req = &apireq.Request{Method: apireq.MethodGet, URL: path}
	case apireq.MethodPost, apireq.MethodPut, apireq.MethodPatch, apireq.MethodDelete:
		req = &apireq.Request{Method: strings.ToUpper(method), URL: path}
		if options.Body != nil {
			req.Body = options.Body
		} else {
			req.Form = nonNilValues(options.Form)
		}
	case apireq.MethodJSON:
		body := options.JSON
		if !options.HasJSON {
			body = []byte("{}")
			if options.Body != nil {
				body = options.Body
			}
		}

		jsonReq, err := http.NewJSONRequest(path, body)
		if err != nil {
			return nil, err
		}

		req = jsonReq
	case apireq.MethodUpload:
		req = &apireq.Request{
			Method: apireq.MethodPost,
			URL:    path,
			Form:   options.Form,
			Files:  options.Files,
		}
	default:
		return nil, fmt.Errorf("%w: %s", constants.ErrUnknownMethod, method)
	}

	req.Query = options.Query
	if req.Headers == nil {
		req.Headers = make(nethttp.Header)
	}

	return req, nil
}

// shape unwraps the response envelope and shapes the payload with the service
// schema, or the per-call schema when the service declares none.
func (c *Client) shape(resp *apireq.Response, options *apireq.CallOptions) (apireq.Result, error) {
	body, ok, err := http.ParseJSON(resp.Body)
	if err != nil {
		return nil, err
	}

	if !ok {
		return &apireq.Raw{}, nil
	}

	payload, err := unwrapEnvelope(body)
	if err != nil {
		c.logger.Warn("API Response Malformed", map[string]interface{}{
			"service": c.service.Name,
			"status":  resp.StatusCode,
			"error":   err.Error(),
		})

		return nil, err
	}

	schema := c.service.Entity
	if schema == nil {
		schema = options.Entity
	}

	return apireq.Shape(payload, resp.Headers, schema)
}

func unwrapEnvelope(body any) (any, error) {
	obj, ok := body.(*apireq.Object)
	if !ok {
		return nil, fmt.Errorf("%w: response body is not an object", apireq.ErrMalformedPayload)
	}

	payload, ok := obj.Get(constants.EnvelopeKey)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q envelope", apireq.ErrMalformedPayload, constants.EnvelopeKey)
	}

	return payload, nil
}

func nonNilValues(values url.Values) url.Values {
	if values == nil {
		return url.Values{}
	}

	return values
}
