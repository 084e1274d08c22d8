package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/collab-sessions/internal/identity"
)

func newTokenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with bearer tokens",
	}

	var (
		userID string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Print a signed development token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}
			issuer, err := identity.NewIssuer(a.identityConfig(), time.Now)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "Subject (user id) of the token")
	issue.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	cmd.AddCommand(issue)
	return cmd
}
