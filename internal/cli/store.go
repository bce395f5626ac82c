package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/pkg/modstore"
)

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to the backend and report its type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context(), modstore.WithoutSchema())
			if err != nil {
				return err
			}
			defer client.Close()

			store := client.Store()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"driver":    store.Type(),
					"connected": store.IsConnected(),
					"server_id": client.ServerID(),
				})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "connected to %s\n", store.Type())
			return err
		},
	}
}

// SelectOptions holds flags for the select command.
type SelectOptions struct {
	*RootOptions
	Where  string
	Args   []string
	Names  []string
	Values []string
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "select <collection>",
		Short: "Read records from a collection",
		Long: `Read records from a collection, optionally filtered.

The filter is passed to the backend untouched: a SQL predicate for
mysql and sqlite, a condition expression for dynamodb.

Examples:
  modstore select bans
  modstore select bans --where "target = ? AND active = ?" --arg steve --arg 1
  modstore --driver dynamodb select bans --where "#t = :t" --name "#t=target" --value ":t=steve"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "backend-native filter")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "positional argument for a SQL filter (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Names, "name", nil, "attribute name placeholder #n=field (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Values, "value", nil, "attribute value placeholder :v=value (repeatable)")

	return cmd
}

func runSelect(opts *SelectOptions, cmd *cobra.Command, collection string) error {
	client, err := opts.open(cmd.Context(), modstore.WithoutSchema())
	if err != nil {
		return err
	}
	defer client.Close()

	store := client.Store()
	var records []core.Record
	if opts.Where == "" {
		records, err = store.SelectAll(cmd.Context(), collection)
	} else {
		var filter core.Filter
		filter, err = opts.filter(store.Type())
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
		records, err = store.Select(cmd.Context(), collection, filter)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "select failed", err)
	}
	return writeRecords(cmd.OutOrStdout(), opts.Format, records)
}

func (o *SelectOptions) filter(t core.DriverType) (core.Filter, error) {
	if core.FilterBackendFor(t) == core.FilterSQL {
		return core.SQLFilter{Where: o.Where, Args: parseValues(o.Args)}, nil
	}

	names, err := parsePairs(o.Names)
	if err != nil {
		return nil, err
	}
	values, err := parsePairs(o.Values)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var record core.Record
	for _, k := range keys {
		record.Set(k, parseValue(values[k]))
	}
	return core.DocumentFilter{Expression: o.Where, Names: names, Values: record}, nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <statement> [args...]",
		Short: "Run a backend-native statement and print its rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context(), modstore.WithoutSchema())
			if err != nil {
				return err
			}
			defer client.Close()

			records, err := client.Store().ExecuteQuery(cmd.Context(), args[0], parseValues(args[1:])...)
			if err != nil {
				return WrapExitError(ExitFailure, "query failed", err)
			}
			return writeRecords(cmd.OutOrStdout(), rootOpts.Format, records)
		},
	}
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <statement> [args...]",
		Short: "Run a backend-native statement and discard any result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context(), modstore.WithoutSchema())
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Store().Query(cmd.Context(), args[0], parseValues(args[1:])...); err != nil {
				return WrapExitError(ExitFailure, "exec failed", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	var unique bool

	cmd := &cobra.Command{
		Use:   "index <collection> <field>",
		Short: "Create a secondary index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context(), modstore.WithoutSchema())
			if err != nil {
				return err
			}
			defer client.Close()

			spec := core.IndexSpec{Collection: args[0], Field: args[1], Unique: unique}
			if err := client.Store().CreateIndex(cmd.Context(), spec); err != nil {
				return WrapExitError(ExitFailure, "create index failed", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "index on %s.%s ready\n", spec.Collection, spec.Field)
			return err
		},
	}

	cmd.Flags().BoolVar(&unique, "unique", false, "reject duplicate values")
	return cmd
}
