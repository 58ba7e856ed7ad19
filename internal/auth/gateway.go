package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// TokenProvider supplies gateway access tokens per service prefix.
type TokenProvider interface {
	GetToken(ctx context.Context, prefix string) (string, error)
	RefreshToken(ctx context.Context, prefix string) (string, error)
}

// GatewayConfig holds the settings for a GatewayTokenManager.
type GatewayConfig struct {
	URL       string
	AppID     string
	AppSecret string
	Timeout   time.Duration
	Store     TokenStore
}

// gatewayError is the body returned by the gateway on a failed token request.
type gatewayError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

// GatewayTokenManager fetches client-credentials tokens from the API gateway
// and caches them in a TokenStore keyed by app id and prefix.
type GatewayTokenManager struct {
	client    *resty.Client
	appID     string
	appSecret string
	store     TokenStore
	group     singleflight.Group
	timeout   time.Duration
	now       func() time.Time
}

// NewGatewayTokenManager creates a token manager for one set of gateway credentials.
func NewGatewayTokenManager(cfg GatewayConfig) (*GatewayTokenManager, error) {
	if cfg.URL == "" {
		return nil, constants.ErrGatewayURLRequired
	}

	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, constants.ErrGatewayCredentials
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.ShortHTTPTimeout
	}

	if cfg.Store == nil {
		cfg.Store = NewMemoryTokenStore()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader(constants.HeaderAccept, constants.ContentTypeJSON)

	return &GatewayTokenManager{
		client:    client,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		store:     cfg.Store,
		timeout:   cfg.Timeout,
		now:       time.Now,
	}, nil
}

// AppID returns the gateway application id.
func (m *GatewayTokenManager) AppID() string {
	return m.appID
}

// GetToken returns a cached valid token for prefix or requests a new one.
func (m *GatewayTokenManager) GetToken(ctx context.Context, prefix string) (string, error) {
	key := m.storeKey(prefix)

	token, err := m.store.Get(ctx, key)
	if err == nil && token.Valid() {
		return token.AccessToken, nil
	}

	if err != nil && !errors.Is(err, constants.ErrTokenNotFound) {
		return "", fmt.Errorf("failed to read cached token: %w", err)
	}

	return m.fetch(ctx, prefix, false)
}

// RefreshToken discards the cached token for prefix and requests a new one.
// Refreshes and fetches for the same prefix share one flight, so a GetToken
// arriving mid-refresh waits for the refreshed token.
func (m *GatewayTokenManager) RefreshToken(ctx context.Context, prefix string) (string, error) {
	return m.fetch(ctx, prefix, true)
}

// Token returns the full cached token for prefix, fetching one if needed.
func (m *GatewayTokenManager) Token(ctx context.Context, prefix string) (*Token, error) {
	_, err := m.GetToken(ctx, prefix)
	if err != nil {
		return nil, err
	}

	return m.store.Get(ctx, m.storeKey(prefix))
}

func (m *GatewayTokenManager) fetch(ctx context.Context, prefix string, discard bool) (string, error) {
	key := m.storeKey(prefix)

	flight := m.group.DoChan(key, func() (interface{}, error) {
		// joined callers must not fail because the first one gave up
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		if discard {
			err := m.store.Delete(flightCtx, key)
			if err != nil {
				return nil, fmt.Errorf("failed to discard cached token: %w", err)
			}
		}

		token, err := m.requestToken(flightCtx, prefix)
		if err != nil {
			return nil, err
		}

		err = m.store.Set(flightCtx, key, token)
		if err != nil {
			return nil, fmt.Errorf("failed to cache token: %w", err)
		}

		return token.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for gateway token: %w", ctx.Err())
	case result := <-flight:
		if result.Err != nil {
			return "", result.Err
		}

		accessToken, _ := result.Val.(string)

		return accessToken, nil
	}
}

func (m *GatewayTokenManager) requestToken(ctx context.Context, prefix string) (*Token, error) {
	token := &Token{}
	gwErr := &gatewayError{}

	resp, err := m.client.R().
		SetContext(ctx).
		ForceContentType(constants.ContentTypeJSON).
		SetFormData(map[string]string{
			"grant_type":    constants.GrantTypeClientCredentials,
			"client_id":     m.appID,
			"client_secret": m.appSecret,
		}).
		SetResult(token).
		SetError(gwErr).
		Post(fmt.Sprintf(constants.GatewayTokenPath, strings.Trim(prefix, "/")))
	if err != nil {
		return nil, fmt.Errorf("gateway token request: %w", err)
	}

	if resp.IsError() {
		return nil, mapGatewayError(resp, gwErr)
	}

	if token.AccessToken == "" {
		return nil, constants.ErrEmptyAccessToken
	}

	token.stamp(m.now())

	return token, nil
}

func mapGatewayError(resp *resty.Response, gwErr *gatewayError) error {
	detail := gwErr.ErrorDescription
	if detail == "" {
		detail = gwErr.Message
	}

	if detail == "" {
		detail = gwErr.Error
	}

	if detail == "" {
		detail = strings.TrimSpace(resp.String())
	}

	return fmt.Errorf("%w: status %d: %s", constants.ErrTokenRequestFailed, resp.StatusCode(), detail)
}

func (m *GatewayTokenManager) storeKey(prefix string) string {
	return m.appID + "/" + strings.Trim(prefix, "/")
}

// StaticTokenProvider returns a fixed token for every prefix.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider that always returns token.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

// GetToken returns the fixed token.
func (p *StaticTokenProvider) GetToken(_ context.Context, _ string) (string, error) {
	if p.token == "" {
		return "", constants.ErrEmptyAccessToken
	}

	return p.token, nil
}

// RefreshToken always fails since a static token cannot be renewed.
func (p *StaticTokenProvider) RefreshToken(_ context.Context, _ string) (string, error) {
	return "", constants.ErrStaticTokenCannotRefresh
}
