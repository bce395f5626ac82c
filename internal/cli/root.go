package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/modstore/pkg/modstore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config   string
	Driver   string
	Endpoint string
	Username string
	Password string
	Format   string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the modstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "modstore",
		Short: "Inspect and administer a moderation store",
		Long: `modstore talks to the storage backend of the moderation add-on.

The backend is read from the config file and MODSTORE_* environment
variables; the connection flags below take precedence over both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to a YAML or JSON config file")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "backend: mysql, sqlite or dynamodb")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "backend endpoint")
	cmd.PersistentFlags().StringVar(&opts.Username, "username", "", "backend user or access key")
	cmd.PersistentFlags().StringVar(&opts.Password, "password", "", "backend password or secret key")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewPingCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(punishmentCommands(opts)...)

	return cmd
}

// LoadConfig resolves the configuration: file, then environment, then flags.
func (o *RootOptions) LoadConfig() (*modstore.Config, error) {
	config, err := modstore.LoadConfig(o.Config)
	if err != nil {
		return nil, err
	}
	if o.Driver != "" {
		config.Store.Driver = o.Driver
	}
	if o.Endpoint != "" {
		config.Store.Endpoint = o.Endpoint
	}
	if o.Username != "" {
		config.Store.Username = o.Username
	}
	if o.Password != "" {
		config.Store.Password = o.Password
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (o *RootOptions) open(ctx context.Context, opts ...modstore.Option) (modstore.Client, error) {
	config, err := o.LoadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	client, err := modstore.NewClient(ctx, config, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return client, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
