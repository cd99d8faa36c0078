package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "benchdesk.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "desk",
		Short:        "Benchdesk: repair-shop intake",
		Long:         "Benchdesk captures client, device and job-card data for the repair shop, reusing existing client and device records where they exist.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLookupCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTechniciansCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newJobCardsCmd())
	cmd.AddCommand(newOrphansCmd())
	cmd.AddCommand(newLedgerCmd())
	cmd.AddCommand(newSandboxCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "desk %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
