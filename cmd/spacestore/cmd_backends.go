package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/spacestore/internal/backend"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the registered storage backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := backend.Names()

			rows := make([][]string, 0, len(names))
			for _, n := range names {
				rows = append(rows, []string{n})
			}

			return output(cmd.OutOrStdout(), names, &tableView{headers: []string{"NAME"}, rows: rows}, strings.Join(names, "\n"))
		},
	}
}
