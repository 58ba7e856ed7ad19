package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apirequests/internal/config"
	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// ErrConfigExists is returned by config init when the file is already present.
var ErrConfigExists = errors.New("config file already exists, use --force to overwrite")

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "Inspect and create the apireq configuration file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  "Display the configuration after environment overrides, with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read(viper.GetString("config"))
			if err != nil {
				return err
			}

			redacted := cfg.Redacted()

			return renderConfig(cmd.OutOrStdout(), &redacted, viper.GetString("output"))
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var (
		force      bool
		gatewayURL string
		prefix     string
		service    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long:  "Write a starter configuration file with one service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := viper.GetString("config")
			if path == "" {
				defaultPath, err := config.DefaultPath()
				if err != nil {
					return err
				}

				path = defaultPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s", ErrConfigExists, path)
			}

			cfg := starterConfig(gatewayURL, service, prefix)

			err := config.Validate(cfg)
			if err != nil {
				return err
			}

			err = config.Save(path, cfg)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&gatewayURL, "gateway-url", "", "API gateway URL, enabled later with ENABLE_API_GATEWAY_AUTH")
	cmd.Flags().StringVar(&service, "name", "default", "service name")
	cmd.Flags().StringVar(&prefix, "prefix", "http://localhost:8080", "service base URL")

	return cmd
}

func starterConfig(gatewayURL, service, prefix string) *apireq.Config {
	return &apireq.Config{
		Gateway: apireq.GatewayConfig{
			Enabled: false,
			URL:     gatewayURL,
			TokenStore: apireq.TokenStoreConfig{
				Type: constants.TokenStoreMemory,
			},
		},
		HTTP: apireq.HTTPConfig{
			Timeout:      constants.DefaultHTTPTimeout,
			RetryMax:     constants.DefaultRetryMax,
			RetryWaitMin: constants.DefaultRetryWaitMin,
			RetryWaitMax: constants.DefaultRetryWaitMax,
		},
		Middlewares: []string{apireq.MiddlewareRequestID, apireq.MiddlewareLogging},
		RateLimit: apireq.RateLimitConfig{
			RequestsPerSecond: constants.DefaultRequestsPerSecond,
			Burst:             constants.DefaultRateLimitBurst,
		},
		Services: map[string]apireq.ServiceConfig{
			service: {Prefix: prefix},
		},
	}
}

func renderConfig(out io.Writer, cfg *apireq.Config, format string) error {
	switch format {
	case constants.FormatJSON:
		return writeJSON(out, cfg)
	case constants.FormatYAML:
		return writeYAML(out, cfg)
	}

	table := tablewriter.NewWriter(out)
	table.Header("Setting", "Value")
	_ = table.Append("Gateway Enabled", fmt.Sprintf("%t", cfg.Gateway.Enabled))
	_ = table.Append("Gateway URL", orNotAvailable(cfg.Gateway.URL))
	_ = table.Append("Gateway Prefix", orNotAvailable(cfg.Gateway.Prefix))
	_ = table.Append("Gateway App ID", orNotAvailable(cfg.Gateway.AppID))
	_ = table.Append("Gateway App Secret", orNotAvailable(cfg.Gateway.AppSecret))
	_ = table.Append("Token Store", orNotAvailable(cfg.Gateway.TokenStore.Type))
	_ = table.Append("HTTP Timeout", cfg.HTTP.Timeout.String())
	_ = table.Append("Retry Max", fmt.Sprintf("%d", cfg.HTTP.RetryMax))
	_ = table.Append("Middlewares", orNotAvailable(strings.Join(cfg.Middlewares, ", ")))

	for _, name := range cfg.ServiceNames() {
		_ = table.Append("Service "+name, cfg.Services[name].Prefix)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func orNotAvailable(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}
