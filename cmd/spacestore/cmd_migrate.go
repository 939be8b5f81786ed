package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/spacestore/internal/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.backend.Pool == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s backend has no migrations\n", a.backend.Name)
				return nil
			}

			return db.Migrate(cmd.Context(), a.backend.Pool, a.log)
		},
	}
	cmd.AddCommand(newMigrateStatusCmd())

	return cmd
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.backend.Pool == nil {
				return fmt.Errorf("%s backend has no migrations", a.backend.Name)
			}

			states, err := db.Status(cmd.Context(), a.backend.Pool)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(states))
			for _, s := range states {
				rows = append(rows, []string{strconv.FormatInt(s.Version, 10), s.File, strconv.FormatBool(s.Applied)})
			}

			return output(cmd.OutOrStdout(), states, &tableView{
				headers: []string{"VERSION", "FILE", "APPLIED"},
				rows:    rows,
			}, strconv.Itoa(len(states)))
		},
	}
}
