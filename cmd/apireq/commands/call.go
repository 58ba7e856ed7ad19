package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apiclient"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

type callFlags struct {
	query   []string
	form    []string
	headers []string
	files   []string
	json    string
	body    string
	entity  string
}

// NewCallCommand creates the call command.
func NewCallCommand() *cobra.Command {
	flags := &callFlags{}

	cmd := &cobra.Command{
		Use:   "call METHOD PATH",
		Short: "Call a configured service",
		Long: `Send a request to a configured service and print the unwrapped response.

METHOD is one of GET, POST, PUT, PATCH, DELETE, JSON or UPLOAD. PATH is joined
to the service prefix unless it is an absolute URL.`,
		Example: `  apireq call GET users --service users --query page=2
  apireq call JSON users --json '{"name":"alice"}'
  apireq call UPLOAD avatars --file avatar=./me.png --form kind=profile`,
		Args: cobra.ExactArgs(constants.MinimumArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.query, "query", "q", nil, "query parameter KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVarP(&flags.form, "form", "f", nil, "form field KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "request header KEY=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&flags.files, "file", nil, "upload file FIELD=PATH (repeatable)")
	cmd.Flags().StringVar(&flags.json, "json", "", "JSON body, @file or @- for stdin")
	cmd.Flags().StringVar(&flags.body, "body", "", "raw body, @file or @- for stdin")
	cmd.Flags().StringVar(&flags.entity, "entity", "", "shape the response as this entity when the service has none")

	return cmd
}

func runCall(cmd *cobra.Command, method, path string, flags *callFlags) error {
	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	name, err := serviceName(cfg)
	if err != nil {
		return err
	}

	opts, err := buildCallOptions(cmd, flags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	registry, err := apiclient.NewRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = registry.Close() }()

	api, err := registry.API(ctx, name)
	if err != nil {
		return err
	}

	result, err := api.Call(ctx, strings.ToUpper(method), path, opts...)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", strings.ToUpper(method), path, err)
	}

	return renderResult(cmd.OutOrStdout(), result, viper.GetString("output"))
}

func buildCallOptions(cmd *cobra.Command, flags *callFlags) ([]apireq.CallOption, error) {
	var opts []apireq.CallOption

	query, err := parseKeyValues(flags.query)
	if err != nil {
		return nil, err
	}

	if len(query) > 0 {
		opts = append(opts, apireq.WithQuery(query))
	}

	form, err := parseKeyValues(flags.form)
	if err != nil {
		return nil, err
	}

	if len(form) > 0 {
		opts = append(opts, apireq.WithForm(form))
	}

	headers, err := parseKeyValues(flags.headers)
	if err != nil {
		return nil, err
	}

	for key, values := range headers {
		for _, value := range values {
			opts = append(opts, apireq.WithHeader(key, value))
		}
	}

	files, err := parseKeyValues(flags.files)
	if err != nil {
		return nil, err
	}

	for field, paths := range files {
		for _, path := range paths {
			opts = append(opts, apireq.WithFile(field, path))
		}
	}

	if flags.json != "" {
		data, err := readBody(flags.json, cmd.InOrStdin())
		if err != nil {
			return nil, err
		}

		opts = append(opts, apireq.WithJSON(data))
	}

	if flags.body != "" {
		data, err := readBody(flags.body, cmd.InOrStdin())
		if err != nil {
			return nil, err
		}

		opts = append(opts, apireq.WithBody(data))
	}

	if flags.entity != "" {
		opts = append(opts, apireq.WithEntity(apireq.NewSchema(flags.entity)))
	}

	return opts, nil
}
