package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/collab-sessions/internal/grantfile"
)

func newGrantsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Manage collaboration grants",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or update collaboration grants from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := grantfile.Load(args[0])
			if err != nil {
				return err
			}

			storage, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeStorage(storage)

			n, err := grantfile.Import(cmd.Context(), storage.Grants, entries, a.idGenerator, time.Now)
			if err != nil {
				a.logger.ErrorContext(cmd.Context(), "grant import failed", "file", args[0], "imported", n, "error", err)
				return err
			}
			a.logger.InfoContext(cmd.Context(), "grants imported", "file", args[0], "count", n)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d grants\n", n)
			return nil
		},
	})
	return cmd
}
