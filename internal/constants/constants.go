package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits for the optional transport-level retry policy.
const (
	// DefaultRetryMax is the default number of transport retries. Zero keeps the
	// token-refresh retry as the only automatic retry.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExtendedRetryWaitMax is used for operations that need longer waits.
	ExtendedRetryWaitMax = 30 * time.Second
)

// Gateway token handling.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// AccessTokenParam is the query parameter carrying the gateway token.
	AccessTokenParam = "access_token"

	// InvalidTokenError is the gateway "error" value signalling an expired or revoked token.
	InvalidTokenError = "invalid_token"

	// GatewayTokenPath is the token endpoint path template relative to the gateway URL.
	GatewayTokenPath = "/%s/oauth2/token"

	// GrantTypeClientCredentials is the OAuth2 grant used against the gateway.
	GrantTypeClientCredentials = "client_credentials"

	// DefaultTokenStoreBucket is the NATS KV bucket for shared gateway tokens.
	DefaultTokenStoreBucket = "apireq_gateway_tokens"
)

// Upstream result codes carried in failure bodies.
const (
	ResultCodeRequestError     = 200000
	ResultCodeAPIClosed        = 200001
	ResultCodeResourceNotFound = 200002
	ResultCodeParameterIllegal = 200003
	ResultCodeAuthError        = 200004
)

// Response envelope and shaping keys.
const (
	EnvelopeKey    = "response"
	DataKey        = "data"
	MetaKey        = "meta"
	PaginationKey  = "pagination"
	TotalKey       = "total"
	PerPageKey     = "per_page"
	CurrentPageKey = "current_page"
	ResultCodeKey  = "result_code"
	MessageKey     = "message"
	ErrorKey       = "error"
)

// Header names.
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderUserAgent   = "User-Agent"
	HeaderRequestID   = "X-Request-Id"

	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Rate limiting defaults.
const (
	// DefaultRequestsPerSecond is used by the rate_limit middleware when unset.
	DefaultRequestsPerSecond = 10

	// DefaultRateLimitBurst is used by the rate_limit middleware when unset.
	DefaultRateLimitBurst = 1
)

// Validation and limits.
const (
	// MinimumArgumentCount is the minimum number of command line arguments.
	MinimumArgumentCount = 2

	// KeyValueParts is the number of parts in a KEY=VALUE flag.
	KeyValueParts = 2
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)

// Token store backends.
const (
	TokenStoreMemory = "memory"
	TokenStoreNATS   = "nats"
)
