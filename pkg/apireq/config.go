package apireq

import (
	"fmt"
	"time"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// Config represents the configuration shared by all service clients.
type Config struct {
	// Gateway: API gateway authentication settings.
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway" yaml:"gateway"`
	// HTTP: transport settings.
	HTTP HTTPConfig `json:"http" mapstructure:"http" yaml:"http"`
	// Middlewares: names of registry middleware applied after gateway signing,
	// in order.
	Middlewares []string `json:"middlewares" mapstructure:"middlewares" yaml:"middlewares"`
	// RateLimit: settings of the rate_limit middleware.
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit"`
	// Services: upstream services by name.
	Services map[string]ServiceConfig `json:"services" mapstructure:"services" yaml:"services" validate:"dive"`

	// Logger: optional structured logger. Defaults to a no-op logger.
	Logger Logger `json:"-" mapstructure:"-" validate:"-" yaml:"-"`
	// Metrics: collectors used by the metrics middleware. Defaults to
	// collectors registered with the default prometheus registry.
	Metrics *Metrics `json:"-" mapstructure:"-" validate:"-" yaml:"-"`
	// Registry: resolves Middlewares. Defaults to DefaultMiddlewareRegistry.
	Registry *MiddlewareRegistry `json:"-" mapstructure:"-" validate:"-" yaml:"-"`
	// CustomMiddlewares: applied after the named middlewares, in order.
	CustomMiddlewares []Middleware `json:"-" mapstructure:"-" validate:"-" yaml:"-"`
	// Schemas: entity schemas referenced by ServiceConfig.Entity.
	Schemas map[string]*Schema `json:"-" mapstructure:"-" validate:"-" yaml:"-"`
}

// GatewayConfig holds the gateway credentials. When Enabled is false no
// request is signed.
type GatewayConfig struct {
	Enabled    bool             `json:"enabled" mapstructure:"enabled"     yaml:"enabled"`
	URL        string           `json:"url" mapstructure:"url"         yaml:"url"         validate:"required_if=Enabled true,omitempty,url"`
	Prefix     string           `json:"prefix" mapstructure:"prefix"      yaml:"prefix"`
	AppID      string           `json:"app_id" mapstructure:"app_id"      yaml:"app_id"      validate:"required_if=Enabled true"`
	AppSecret  string           `json:"app_secret" mapstructure:"app_secret"  yaml:"app_secret"  validate:"required_if=Enabled true"`
	TokenStore TokenStoreConfig `json:"token_store" mapstructure:"token_store" yaml:"token_store"`
}

// TokenStoreConfig selects where gateway tokens are cached.
type TokenStoreConfig struct {
	Type string     `json:"type" mapstructure:"type" yaml:"type" validate:"omitempty,oneof=memory nats"`
	NATS NATSConfig `json:"nats" mapstructure:"nats" yaml:"nats"`
}

// NATSConfig configures the NATS JetStream key-value token store.
type NATSConfig struct {
	URL    string        `json:"url" mapstructure:"url"    yaml:"url"`
	Bucket string        `json:"bucket" mapstructure:"bucket" yaml:"bucket"`
	TTL    time.Duration `json:"ttl" mapstructure:"ttl"    yaml:"ttl"    validate:"gte=0"`
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	Timeout        time.Duration     `json:"timeout" mapstructure:"timeout"         yaml:"timeout"         validate:"gte=0"`
	UserAgent      string            `json:"user_agent" mapstructure:"user_agent"      yaml:"user_agent"`
	Debug          bool              `json:"debug" mapstructure:"debug"           yaml:"debug"`
	RetryMax       int               `json:"retry_max" mapstructure:"retry_max"       yaml:"retry_max"       validate:"gte=0"`
	RetryWaitMin   time.Duration     `json:"retry_wait_min" mapstructure:"retry_wait_min"  yaml:"retry_wait_min"  validate:"gte=0"`
	RetryWaitMax   time.Duration     `json:"retry_wait_max" mapstructure:"retry_wait_max"  yaml:"retry_wait_max"  validate:"gte=0"`
	DefaultHeaders map[string]string `json:"default_headers" mapstructure:"default_headers" yaml:"default_headers"`
}

// RateLimitConfig configures the rate_limit middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `json:"burst" mapstructure:"burst"               yaml:"burst"               validate:"gte=0"`
}

// ServiceConfig describes one upstream service in configuration files.
type ServiceConfig struct {
	// Prefix: base URL that relative call paths are joined to.
	Prefix string `json:"prefix" mapstructure:"prefix" yaml:"prefix" validate:"required,url"`
	// GatewayPrefix: gateway route of the service. Defaults to Gateway.Prefix.
	GatewayPrefix string `json:"gateway_prefix" mapstructure:"gateway_prefix" yaml:"gateway_prefix"`
	// Entity: name of a schema in Config.Schemas used to shape responses.
	Entity string `json:"entity" mapstructure:"entity" yaml:"entity"`
	// AppID and AppSecret override the gateway credentials for this service.
	AppID     string `json:"app_id" mapstructure:"app_id"     yaml:"app_id"`
	AppSecret string `json:"app_secret" mapstructure:"app_secret" yaml:"app_secret"`
}

// Service identifies an upstream service.
type Service struct {
	Name          string
	Prefix        string
	GatewayPrefix string
	// Gateway overrides Config.Gateway when set.
	Gateway *GatewayConfig
	// Entity shapes responses. A nil schema returns payloads as *Raw.
	Entity *Schema
}

// Service resolves a configured service by name.
func (c *Config) Service(name string) (Service, error) {
	svcCfg, ok := c.Services[name]
	if !ok {
		return Service{}, fmt.Errorf("%w: %s", constants.ErrServiceNotConfigured, name)
	}

	if svcCfg.Prefix == "" {
		return Service{}, fmt.Errorf("%w: %s", constants.ErrServicePrefixMissing, name)
	}

	svc := Service{
		Name:          name,
		Prefix:        svcCfg.Prefix,
		GatewayPrefix: svcCfg.GatewayPrefix,
	}

	if svcCfg.Entity != "" {
		svc.Entity = c.Schemas[svcCfg.Entity]
		if svc.Entity == nil {
			svc.Entity = NewSchema(svcCfg.Entity)
		}
	}

	if svcCfg.AppID != "" || svcCfg.AppSecret != "" {
		gateway := c.Gateway
		if svcCfg.AppID != "" {
			gateway.AppID = svcCfg.AppID
		}

		if svcCfg.AppSecret != "" {
			gateway.AppSecret = svcCfg.AppSecret
		}

		svc.Gateway = &gateway
	}

	return svc, nil
}

// ServiceNames returns the configured service names in lexicographic order.
func (c *Config) ServiceNames() []string {
	return sortedKeys(c.Services)
}

// GatewayFor returns the effective gateway settings of svc.
func (c *Config) GatewayFor(svc Service) GatewayConfig {
	gateway := c.Gateway
	if svc.Gateway != nil {
		gateway = *svc.Gateway
	}

	if svc.GatewayPrefix != "" {
		gateway.Prefix = svc.GatewayPrefix
	}

	return gateway
}

func (c *Config) logger() Logger {
	if c == nil || c.Logger == nil {
		return NopLogger()
	}

	return c.Logger
}

// LoggerOrNop returns the configured logger or a no-op logger.
func (c *Config) LoggerOrNop() Logger {
	return c.logger()
}

// MiddlewareRegistry returns the configured registry or the default one.
func (c *Config) MiddlewareRegistry() *MiddlewareRegistry {
	if c.Registry != nil {
		return c.Registry
	}

	return DefaultMiddlewareRegistry()
}

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c

	if out.Gateway.AppSecret != "" {
		out.Gateway.AppSecret = constants.MaskedSecret
	}

	if len(c.Services) > 0 {
		out.Services = make(map[string]ServiceConfig, len(c.Services))

		for name, svc := range c.Services {
			if svc.AppSecret != "" {
				svc.AppSecret = constants.MaskedSecret
			}

			out.Services[name] = svc
		}
	}

	return out
}
