// Package config loads apireq.Config from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// EnvPrefix prefixes every environment override, e.g. APIREQ_HTTP_TIMEOUT.
const EnvPrefix = "APIREQ"

// GatewayAuthEnv toggles gateway signing independently of the config file.
const GatewayAuthEnv = "ENABLE_API_GATEWAY_AUTH"

// validate is shared; building a validator is expensive.
var validate = validator.New()

// Load reads and validates the configuration at path.
func Load(path string) (*apireq.Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	err = Validate(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read reads the configuration at path without validating it. With an empty
// path the default locations are searched and a missing file is not an error.
// Environment variables override file values.
func Read(path string) (*apireq.Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")

		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &apireq.Config{}

	err = v.Unmarshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("gateway.url", "")
	v.SetDefault("gateway.prefix", "")
	v.SetDefault("gateway.app_id", "")
	v.SetDefault("gateway.app_secret", "")
	v.SetDefault("gateway.token_store.type", constants.TokenStoreMemory)
	v.SetDefault("gateway.token_store.nats.url", "")
	v.SetDefault("gateway.token_store.nats.bucket", constants.DefaultTokenStoreBucket)
	v.SetDefault("gateway.token_store.nats.ttl", 0)
	v.SetDefault("http.timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.debug", false)
	v.SetDefault("http.retry_max", constants.DefaultRetryMax)
	v.SetDefault("http.retry_wait_min", constants.DefaultRetryWaitMin)
	v.SetDefault("http.retry_wait_max", constants.DefaultRetryWaitMax)
	v.SetDefault("rate_limit.requests_per_second", constants.DefaultRequestsPerSecond)
	v.SetDefault("rate_limit.burst", constants.DefaultRateLimitBurst)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("gateway.enabled", EnvPrefix+"_GATEWAY_ENABLED", GatewayAuthEnv)

	return v
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *apireq.Config) error {
	err := validate.Struct(cfg)
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Gateway.Enabled {
		if cfg.Gateway.URL == "" {
			return constants.ErrGatewayURLRequired
		}

		if cfg.Gateway.AppID == "" || cfg.Gateway.AppSecret == "" {
			return constants.ErrGatewayCredentials
		}
	}

	switch cfg.Gateway.TokenStore.Type {
	case "", constants.TokenStoreMemory:
	case constants.TokenStoreNATS:
		if cfg.Gateway.TokenStore.NATS.URL == "" {
			return constants.ErrNATSURLRequired
		}
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownTokenStore, cfg.Gateway.TokenStore.Type)
	}

	known := map[string]bool{}
	for _, name := range cfg.MiddlewareRegistry().Names() {
		known[name] = true
	}

	for _, name := range cfg.Middlewares {
		if !known[name] {
			return fmt.Errorf("%w: %s", constants.ErrUnknownMiddleware, name)
		}
	}

	return nil
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}

	return filepath.Join(dir, "apireq"), nil
}

// DefaultPath returns the per-user configuration file path.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.yml"), nil
}

// Save writes cfg as YAML to path, creating the directory when needed.
func Save(path string, cfg *apireq.Config) error {
	err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
