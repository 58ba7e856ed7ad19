package constants

import "errors"

// Configuration errors.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrServiceNotConfigured = errors.New("service not configured")
	ErrServicePrefixMissing = errors.New("service prefix is required")
	ErrGatewayURLRequired   = errors.New("gateway URL is required when gateway auth is enabled")
	ErrGatewayCredentials   = errors.New("gateway app_id and app_secret are required when gateway auth is enabled")
	ErrUnknownMiddleware    = errors.New("unknown middleware")
	ErrUnknownTokenStore    = errors.New("unknown token store type")
	ErrNATSURLRequired      = errors.New("NATS URL is required for the nats token store")
	ErrGatewayDisabled      = errors.New("gateway auth is disabled")
)

// Token errors.
var (
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrEmptyAccessToken         = errors.New("gateway returned an empty access token")
	ErrTokenNotFound            = errors.New("token not found")
	ErrTokenRequestFailed       = errors.New("gateway token request failed")
)

// CLI errors.
var (
	ErrInvalidKeyValue   = errors.New("expected KEY=VALUE")
	ErrUnknownMethod     = errors.New("unknown method")
	ErrNoServiceSelected = errors.New("no service selected, use --service")
)
