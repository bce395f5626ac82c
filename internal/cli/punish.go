package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/modstore/internal/moderation"
)

// punishmentView is the JSON shape of a punishment.
type punishmentView struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Target    string     `json:"target"`
	TargetIP  string     `json:"target_ip,omitempty"`
	IPBan     bool       `json:"ip_ban,omitempty"`
	Actor     string     `json:"actor,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Created   time.Time  `json:"created"`
	Expires   *time.Time `json:"expires,omitempty"`
	Active    bool       `json:"active"`
	RevokedBy string     `json:"revoked_by,omitempty"`
}

func viewOf(p moderation.Punishment) punishmentView {
	v := punishmentView{
		ID:        p.ID,
		Kind:      string(p.Kind),
		Target:    p.Target,
		TargetIP:  p.TargetIP,
		IPBan:     p.IPBan,
		Actor:     p.Actor,
		Reason:    p.Reason,
		Created:   p.Created.UTC(),
		Active:    p.Active,
		RevokedBy: p.RevokedBy,
	}
	if !p.Permanent() {
		expires := p.Expires.UTC()
		v.Expires = &expires
	}
	return v
}

func writePunishments(w io.Writer, format string, list []moderation.Punishment) error {
	if format == "json" {
		views := make([]punishmentView, len(list))
		for i, p := range list {
			views[i] = viewOf(p)
		}
		return writeJSON(w, views)
	}
	for _, p := range list {
		expires := "never"
		if !p.Permanent() {
			expires = p.Expires.UTC().Format(time.RFC3339)
		}
		state := "inactive"
		if p.Active {
			state = "active"
		}
		if _, err := fmt.Fprintf(w, "%s  %-4s  %-8s  %s  expires=%s  by=%s  %s\n",
			p.ID, p.Kind, state, p.Target, expires, p.Actor, p.Reason); err != nil {
			return err
		}
	}
	return nil
}

// punishmentCommands builds one command group per punishment kind.
func punishmentCommands(rootOpts *RootOptions) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(moderation.Kinds))
	for _, kind := range moderation.Kinds {
		cmds = append(cmds, newKindCommand(rootOpts, kind))
	}
	return cmds
}

func newKindCommand(rootOpts *RootOptions, kind moderation.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("Manage %s records", kind),
	}
	cmd.AddCommand(newAddCommand(rootOpts, kind))
	cmd.AddCommand(newListCommand(rootOpts, kind))
	if kind.Lasting() {
		cmd.AddCommand(newRevokeCommand(rootOpts, kind))
	}
	return cmd
}

type addOptions struct {
	Actor    string
	Reason   string
	Duration time.Duration
	IP       string
	IPBan    bool
}

func newAddCommand(rootOpts *RootOptions, kind moderation.Kind) *cobra.Command {
	opts := &addOptions{}

	cmd := &cobra.Command{
		Use:   "add <target>",
		Short: fmt.Sprintf("Record a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			repo, err := client.Moderation().Punishments(kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown punishment kind", err)
			}
			p := moderation.Punishment{
				Target:   args[0],
				TargetIP: opts.IP,
				IPBan:    opts.IPBan,
				Actor:    opts.Actor,
				Reason:   opts.Reason,
			}
			if opts.Duration > 0 {
				p.Created = time.Now()
				p.Expires = p.Created.Add(opts.Duration)
			}
			added, err := repo.Add(cmd.Context(), p)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("failed to add %s", kind), err)
			}
			return writePunishments(cmd.OutOrStdout(), rootOpts.Format, []moderation.Punishment{added})
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "console", "who issued it")
	cmd.Flags().StringVarP(&opts.Reason, "reason", "r", "", "reason shown to the target")
	cmd.Flags().StringVar(&opts.IP, "ip", "", "address of the target")
	if kind.Lasting() {
		cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "length; 0 is permanent")
	}
	if kind == moderation.KindBan {
		cmd.Flags().BoolVar(&opts.IPBan, "ip-ban", false, "ban the address as well as the target")
	}
	return cmd
}

func newListCommand(rootOpts *RootOptions, kind moderation.Kind) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list [target]",
		Short: fmt.Sprintf("List %s records, newest first", kind),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			repo, err := client.Moderation().Punishments(kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown punishment kind", err)
			}

			var list []moderation.Punishment
			switch {
			case len(args) == 0:
				list, err = repo.All(cmd.Context())
			case activeOnly:
				list, err = repo.Active(cmd.Context(), args[0])
			default:
				list, err = repo.History(cmd.Context(), args[0])
			}
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("failed to list %s records", kind), err)
			}
			return writePunishments(cmd.OutOrStdout(), rootOpts.Format, list)
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only punishments still in force")
	return cmd
}

func newRevokeCommand(rootOpts *RootOptions, kind moderation.Kind) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "revoke <target>",
		Short: fmt.Sprintf("Lift every %s in force against a target", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			repo, err := client.Moderation().Punishments(kind)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown punishment kind", err)
			}
			n, err := repo.Revoke(cmd.Context(), args[0], actor)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("failed to revoke %s", kind), err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"revoked": n})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "revoked %d %s record(s) for %s\n", n, kind, args[0])
			return err
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "console", "who lifted it")
	return cmd
}
