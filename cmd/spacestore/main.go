// Command spacestore runs and operates the versioned feature store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/persistorai/spacestore/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	flagFmt    string
	flagConfig string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("spacestore version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("spacestore version %s", config.Version)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "spacestore",
		Short:   "spacestore: versioned geospatial feature storage",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagConfig != "" {
				return os.Setenv(config.FileEnv, flagConfig)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file (env: "+config.FileEnv+")")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newWriteCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newActivityCmd())
	root.AddCommand(newBackendsCmd())

	return root
}
