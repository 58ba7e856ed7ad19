package apireq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// Built-in middleware names usable in Config.Middlewares.
const (
	MiddlewareLogging   = "logging"
	MiddlewareRequestID = "request_id"
	MiddlewareRateLimit = "rate_limit"
	MiddlewareMetrics   = "metrics"
)

// LoggingMiddleware logs every request and its outcome.
func LoggingMiddleware(logger Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()

			logger.Debug("API Request", map[string]interface{}{
				"method": req.Method,
				"url":    req.URL,
			})

			resp, err := next(ctx, req)

			fields := map[string]interface{}{
				"method":   req.Method,
				"url":      req.URL,
				"duration": time.Since(start).String(),
			}

			if resp != nil {
				fields["status_code"] = resp.StatusCode
			}

			if err != nil {
				fields["error"] = err.Error()
				logger.Error("API Response Error", fields)
			} else {
				logger.Debug("API Response", fields)
			}

			return resp, err
		}
	}
}

// HeaderMiddleware sets fixed headers on every request.
func HeaderMiddleware(headers map[string]string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			for key, value := range headers {
				req.SetHeader(key, value)
			}

			return next(ctx, req)
		}
	}
}

// UserAgentMiddleware sets the User-Agent header.
func UserAgentMiddleware(userAgent string) Middleware {
	return HeaderMiddleware(map[string]string{constants.HeaderUserAgent: userAgent})
}

// RequestIDMiddleware sets header to a random UUID unless the request
// already carries one. An empty header defaults to X-Request-Id.
func RequestIDMiddleware(header string) Middleware {
	if header == "" {
		header = constants.HeaderRequestID
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			if req.Headers.Get(header) == "" {
				req.SetHeader(header, uuid.NewString())
			}

			return next(ctx, req)
		}
	}
}

// RateLimitMiddleware waits for the limiter before each request.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			err := limiter.Wait(ctx)
			if err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}

			return next(ctx, req)
		}
	}
}

// Metrics holds the prometheus collectors of MetricsMiddleware.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered are reused, so several clients can share a
// registry. A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "apireq_requests_total",
				Help: "Total upstream API requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "apireq_request_duration_seconds",
				Help:    "Upstream API request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	if reg == nil {
		return metrics, nil
	}

	counter, err := register(reg, metrics.RequestsTotal)
	if err != nil {
		return nil, err
	}

	histogram, err := register(reg, metrics.RequestDuration)
	if err != nil {
		return nil, err
	}

	metrics.RequestsTotal = counter
	metrics.RequestDuration = histogram

	return metrics, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	already := prometheus.AlreadyRegisteredError{}
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return collector, fmt.Errorf("registering metrics: %w", err)
}

// MetricsMiddleware records request counts by status class and durations.
func MetricsMiddleware(metrics *Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()

			resp, err := next(ctx, req)

			status := "error"
			if resp != nil {
				status = strconv.Itoa(resp.StatusCode/100) + "xx" //nolint:mnd // status class
			}

			metrics.RequestsTotal.WithLabelValues(req.Method, status).Inc()
			metrics.RequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			return resp, err
		}
	}
}

// MiddlewareFactory builds a middleware from the client configuration.
type MiddlewareFactory func(cfg *Config) (Middleware, error)

// MiddlewareRegistry resolves middleware names from configuration.
type MiddlewareRegistry struct {
	mu        sync.RWMutex
	factories map[string]MiddlewareFactory
}

// NewMiddlewareRegistry creates an empty registry.
func NewMiddlewareRegistry() *MiddlewareRegistry {
	return &MiddlewareRegistry{factories: make(map[string]MiddlewareFactory)}
}

// DefaultMiddlewareRegistry returns a registry holding the built-in
// middlewares.
func DefaultMiddlewareRegistry() *MiddlewareRegistry {
	registry := NewMiddlewareRegistry()

	registry.Register(MiddlewareLogging, func(cfg *Config) (Middleware, error) {
		return LoggingMiddleware(cfg.logger()), nil
	})
	registry.Register(MiddlewareRequestID, func(cfg *Config) (Middleware, error) {
		return RequestIDMiddleware(constants.HeaderRequestID), nil
	})
	registry.Register(MiddlewareRateLimit, func(cfg *Config) (Middleware, error) {
		rps := cfg.RateLimit.RequestsPerSecond
		if rps <= 0 {
			rps = constants.DefaultRequestsPerSecond
		}

		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = constants.DefaultRateLimitBurst
		}

		return RateLimitMiddleware(rate.NewLimiter(rate.Limit(rps), burst)), nil
	})
	registry.Register(MiddlewareMetrics, func(cfg *Config) (Middleware, error) {
		metrics := cfg.Metrics
		if metrics == nil {
			var err error

			metrics, err = NewMetrics(prometheus.DefaultRegisterer)
			if err != nil {
				return nil, err
			}
		}

		return MetricsMiddleware(metrics), nil
	})

	return registry
}

// Register adds or replaces a named factory.
func (r *MiddlewareRegistry) Register(name string, factory MiddlewareFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
}

// Names returns the registered names in lexicographic order.
func (r *MiddlewareRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Build resolves names in order into middleware.
func (r *MiddlewareRegistry) Build(cfg *Config, names []string) (Middlewares, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(Middlewares, 0, len(names))

	for _, name := range names {
		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", constants.ErrUnknownMiddleware, name)
		}

		mw, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("building middleware %s: %w", name, err)
		}

		out = append(out, mw)
	}

	return out, nil
}
