package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/identity"
)

// tokenCmd mints a bearer token signed with the service secret, for local
// testing against the API.
func tokenCmd() *cobra.Command {
	var (
		id  string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <customer|vendor|admin>",
		Short: "Issue a bearer token for a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := identity.Role(args[0])
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", args[0])
			}
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			v := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
			tok, err := v.Issue(identity.Principal{ID: id, Role: role}, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "principal id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
