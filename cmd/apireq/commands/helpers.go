package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/apirequests/internal/config"
	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/internal/logging"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// loadConfig reads the CLI configuration, prompts for a missing gateway secret
// when attached to a terminal, and validates the result.
func loadConfig(stderr io.Writer) (*apireq.Config, error) {
	cfg, err := config.Read(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	verbose := viper.GetBool("verbose")
	cfg.Logger = logging.NewConsole(stderr, verbose)
	cfg.HTTP.Debug = cfg.HTTP.Debug || verbose

	if cfg.Gateway.Enabled && cfg.Gateway.AppSecret == "" && cfg.Gateway.AppID != "" {
		secret, err := promptSecret(stderr, "Gateway app secret: ")
		if err != nil {
			return nil, err
		}

		cfg.Gateway.AppSecret = secret
	}

	err = config.Validate(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// promptSecret reads a secret without echo. Outside a terminal it returns an
// empty string and leaves validation to report the missing value.
func promptSecret(out io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int

	if !term.IsTerminal(fd) {
		return "", nil
	}

	_, _ = fmt.Fprint(out, prompt)

	secret, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	_, _ = fmt.Fprintln(out)

	return strings.TrimSpace(string(secret)), nil
}

// serviceName returns the --service flag, falling back to the only configured
// service.
func serviceName(cfg *apireq.Config) (string, error) {
	if name := viper.GetString("service"); name != "" {
		return name, nil
	}

	names := cfg.ServiceNames()
	if len(names) == 1 {
		return names[0], nil
	}

	return "", constants.ErrNoServiceSelected
}

// parseKeyValues parses repeated KEY=VALUE flags.
func parseKeyValues(pairs []string) (url.Values, error) {
	values := url.Values{}

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", constants.KeyValueParts)
		if len(parts) != constants.KeyValueParts || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidKeyValue, pair)
		}

		values.Add(parts[0], parts[1])
	}

	return values, nil
}

// readBody returns the flag value, or the file contents for @path, or stdin
// for @-.
func readBody(value string, stdin io.Reader) ([]byte, error) {
	if !strings.HasPrefix(value, "@") {
		return []byte(value), nil
	}

	source := strings.TrimPrefix(value, "@")
	if source == "-" {
		data, err := io.ReadAll(bufio.NewReader(stdin))
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(source) //nolint:gosec // path comes from the user's own flag
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	return data, nil
}

func writeJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
