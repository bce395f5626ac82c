package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/modstore/internal/moderation"
)

type userView struct {
	UUID     string    `json:"uuid"`
	Name     string    `json:"name"`
	IP       string    `json:"ip,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// NewUserCommand creates the user lookup command.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user <uuid|name>",
		Short: "Look up a user by UUID, falling back to name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			users := client.Moderation().Users
			var found []moderation.User
			u, ok, err := users.ByUUID(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "lookup failed", err)
			}
			if ok {
				found = []moderation.User{u}
			} else if found, err = users.ByName(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "lookup failed", err)
			}
			if len(found) == 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("no user matches %q", args[0]))
			}

			if rootOpts.Format == "json" {
				views := make([]userView, len(found))
				for i, u := range found {
					views[i] = userView{UUID: u.UUID, Name: u.Name, IP: u.IP, LastSeen: u.LastSeen.UTC()}
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			for _, u := range found {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s  %s  last seen %s\n",
					u.UUID, u.Name, u.IP, u.LastSeen.UTC().Format(time.RFC3339)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
