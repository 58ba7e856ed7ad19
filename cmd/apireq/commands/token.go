package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apiclient"
)

// TokenInfo is the printable view of a gateway token.
type TokenInfo struct {
	Service     string `json:"service"      yaml:"service"`
	Prefix      string `json:"prefix"       yaml:"prefix"`
	AccessToken string `json:"access_token" yaml:"access_token"`
	TokenType   string `json:"token_type"   yaml:"token_type"`
	ExpiresAt   string `json:"expires_at"   yaml:"expires_at"`
	Valid       bool   `json:"valid"        yaml:"valid"`
}

// NewTokenCommand creates the token command group.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage gateway tokens",
		Long:  "Commands for inspecting and refreshing API gateway access tokens",
	}

	cmd.AddCommand(newTokenGetCommand())
	cmd.AddCommand(newTokenRefreshCommand())

	return cmd
}

func newTokenGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the gateway token of a service",
		Long:  "Display the cached gateway token of a service, requesting one when none is cached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, func(ctx context.Context, registry *apiclient.Registry, name string) (*apiclient.Token, string, error) {
				return registry.Token(ctx, name)
			})
		},
	}
}

func newTokenRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a new gateway token",
		Long:  "Discard the cached gateway token of a service and request a new one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd, func(ctx context.Context, registry *apiclient.Registry, name string) (*apiclient.Token, string, error) {
				return registry.RefreshToken(ctx, name)
			})
		},
	}
}

type tokenFunc func(ctx context.Context, registry *apiclient.Registry, name string) (*apiclient.Token, string, error)

func runToken(cmd *cobra.Command, fetch tokenFunc) error {
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	name, err := serviceName(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	registry, err := apiclient.NewRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = registry.Close() }()

	token, prefix, err := fetch(ctx, registry, name)
	if err != nil {
		return fmt.Errorf("failed to get token for %s: %w", name, err)
	}

	return renderToken(cmd.OutOrStdout(), newTokenInfo(name, prefix, token), viper.GetString("output"))
}

func newTokenInfo(name, prefix string, token *apiclient.Token) TokenInfo {
	info := TokenInfo{
		Service:     name,
		Prefix:      prefix,
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   constants.NotAvailable,
		Valid:       token.Valid(),
	}

	if !token.ExpiresAt.IsZero() {
		info.ExpiresAt = token.ExpiresAt.Format(time.RFC3339)
	}

	return info
}

func renderToken(out io.Writer, info TokenInfo, format string) error {
	switch format {
	case constants.FormatJSON:
		return writeJSON(out, info)
	case constants.FormatYAML:
		return writeYAML(out, info)
	default:
		table := tablewriter.NewWriter(out)
		table.Header("Property", "Value")
		_ = table.Append("Service", info.Service)
		_ = table.Append("Prefix", info.Prefix)
		_ = table.Append("Access Token", info.AccessToken)
		_ = table.Append("Token Type", info.TokenType)
		_ = table.Append("Expires At", info.ExpiresAt)
		_ = table.Append("Valid", fmt.Sprintf("%t", info.Valid))

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}

	return nil
}
