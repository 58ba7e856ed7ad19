// Package apiclient builds apireq.API clients from configuration.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fivetwenty-io/apirequests/internal/auth"
	"github.com/fivetwenty-io/apirequests/internal/client"
	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// TokenProvider supplies gateway access tokens per gateway prefix.
type TokenProvider interface {
	GetToken(ctx context.Context, prefix string) (string, error)
	RefreshToken(ctx context.Context, prefix string) (string, error)
}

// Token is a cached gateway token.
type Token = auth.Token

type options struct {
	provider TokenProvider
}

// Option configures New and NewFromConfig.
type Option func(*options)

// WithTokenProvider signs requests with provider instead of the configured
// gateway credentials. Signing is enabled even when the gateway is disabled
// in config.
func WithTokenProvider(provider TokenProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithStaticToken signs every request with a fixed token.
func WithStaticToken(token string) Option {
	return WithTokenProvider(auth.NewStaticTokenProvider(token))
}

// New creates an API client for svc. When the gateway is enabled and no
// provider is given, tokens are cached in the configured token store. If that
// store holds a connection the returned API also implements io.Closer.
func New(ctx context.Context, cfg *apireq.Config, svc apireq.Service, opts ...Option) (apireq.API, error) {
	if cfg == nil {
		return nil, constants.ErrConfigRequired
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		signer auth.TokenProvider
		closer io.Closer
	)

	switch {
	case o.provider != nil:
		signer = o.provider
	case cfg.Gateway.Enabled:
		store, storeCloser, err := newTokenStore(ctx, cfg.Gateway.TokenStore)
		if err != nil {
			return nil, err
		}

		manager, err := newTokenManager(cfg, svc, store)
		if err != nil {
			closeQuietly(storeCloser)

			return nil, err
		}

		signer = manager
		closer = storeCloser
	}

	api, err := client.New(cfg, svc, signer)
	if err != nil {
		closeQuietly(closer)

		return nil, fmt.Errorf("failed to create client for %s: %w", svc.Name, err)
	}

	if closer != nil {
		return &closingAPI{API: api, closer: closer}, nil
	}

	return api, nil
}

// closingAPI owns the token store connection of a stand-alone client.
type closingAPI struct {
	apireq.API
	closer io.Closer
}

// Close releases the token store connection.
func (a *closingAPI) Close() error {
	return a.closer.Close()
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// NewFromConfig creates an API client for the configured service name.
func NewFromConfig(ctx context.Context, cfg *apireq.Config, name string, opts ...Option) (apireq.API, error) {
	if cfg == nil {
		return nil, constants.ErrConfigRequired
	}

	svc, err := cfg.Service(name)
	if err != nil {
		return nil, err
	}

	return New(ctx, cfg, svc, opts...)
}

func newTokenManager(cfg *apireq.Config, svc apireq.Service, store auth.TokenStore) (*auth.GatewayTokenManager, error) {
	gateway := cfg.GatewayFor(svc)

	manager, err := auth.NewGatewayTokenManager(auth.GatewayConfig{
		URL:       gateway.URL,
		AppID:     gateway.AppID,
		AppSecret: gateway.AppSecret,
		Timeout:   constants.ShortHTTPTimeout,
		Store:     store,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway token manager for %s: %w", svc.Name, err)
	}

	return manager, nil
}

// newTokenStore builds the configured token store. The closer is nil for
// stores that hold no connection.
func newTokenStore(ctx context.Context, cfg apireq.TokenStoreConfig) (auth.TokenStore, io.Closer, error) {
	switch cfg.Type {
	case "", constants.TokenStoreMemory:
		return auth.NewMemoryTokenStore(), nil, nil
	case constants.TokenStoreNATS:
		store, err := auth.NewNATSTokenStore(ctx, auth.NATSTokenStoreConfig{
			URL:    cfg.NATS.URL,
			Bucket: cfg.NATS.Bucket,
			TTL:    cfg.NATS.TTL,
		})
		if err != nil {
			return nil, nil, err
		}

		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", constants.ErrUnknownTokenStore, cfg.Type)
	}
}

// credentials identifies one gateway token manager.
type credentials struct {
	url       string
	appID     string
	appSecret string
}

// Registry lazily creates one API client per configured service. Services
// sharing gateway credentials share one token manager.
type Registry struct {
	cfg      *apireq.Config
	store    auth.TokenStore
	closer   io.Closer
	mu       sync.Mutex
	apis     map[string]apireq.API
	managers map[credentials]*auth.GatewayTokenManager
}

// NewRegistry creates a registry for cfg. The token store is opened once and
// shared by every token manager.
func NewRegistry(ctx context.Context, cfg *apireq.Config) (*Registry, error) {
	if cfg == nil {
		return nil, constants.ErrConfigRequired
	}

	registry := &Registry{
		cfg:      cfg,
		apis:     make(map[string]apireq.API),
		managers: make(map[credentials]*auth.GatewayTokenManager),
	}

	if cfg.Gateway.Enabled {
		store, closer, err := newTokenStore(ctx, cfg.Gateway.TokenStore)
		if err != nil {
			return nil, err
		}

		registry.store = store
		registry.closer = closer
	}

	return registry, nil
}

// Config returns the registry configuration.
func (r *Registry) Config() *apireq.Config {
	return r.cfg
}

// API returns the client for the named service, creating it on first use.
func (r *Registry) API(ctx context.Context, name string) (apireq.API, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if api, ok := r.apis[name]; ok {
		return api, nil
	}

	svc, err := r.cfg.Service(name)
	if err != nil {
		return nil, err
	}

	var opts []Option

	if r.cfg.Gateway.Enabled {
		manager, err := r.managerLocked(svc)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithTokenProvider(manager))
	}

	api, err := New(ctx, r.cfg, svc, opts...)
	if err != nil {
		return nil, err
	}

	r.apis[name] = api

	return api, nil
}

// Token returns the current gateway token of the named service.
func (r *Registry) Token(ctx context.Context, name string) (*Token, string, error) {
	manager, prefix, err := r.manager(name)
	if err != nil {
		return nil, "", err
	}

	token, err := manager.Token(ctx, prefix)
	if err != nil {
		return nil, prefix, err
	}

	return token, prefix, nil
}

// RefreshToken forces a new gateway token for the named service.
func (r *Registry) RefreshToken(ctx context.Context, name string) (*Token, string, error) {
	manager, prefix, err := r.manager(name)
	if err != nil {
		return nil, "", err
	}

	_, err = manager.RefreshToken(ctx, prefix)
	if err != nil {
		return nil, prefix, err
	}

	token, err := manager.Token(ctx, prefix)
	if err != nil {
		return nil, prefix, err
	}

	return token, prefix, nil
}

func (r *Registry) manager(name string) (*auth.GatewayTokenManager, string, error) {
	if !r.cfg.Gateway.Enabled {
		return nil, "", constants.ErrGatewayDisabled
	}

	svc, err := r.cfg.Service(name)
	if err != nil {
		return nil, "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	manager, err := r.managerLocked(svc)
	if err != nil {
		return nil, "", err
	}

	return manager, r.cfg.GatewayFor(svc).Prefix, nil
}

func (r *Registry) managerLocked(svc apireq.Service) (*auth.GatewayTokenManager, error) {
	gateway := r.cfg.GatewayFor(svc)
	key := credentials{url: gateway.URL, appID: gateway.AppID, appSecret: gateway.AppSecret}

	if manager, ok := r.managers[key]; ok {
		return manager, nil
	}

	manager, err := newTokenManager(r.cfg, svc, r.store)
	if err != nil {
		return nil, err
	}

	r.managers[key] = manager

	return manager, nil
}

// Close releases the token store connection, if any.
func (r *Registry) Close() error {
	if r.closer == nil {
		return nil
	}

	err := r.closer.Close()
	if err != nil {
		return fmt.Errorf("failed to close token store: %w", err)
	}

	return nil
}
