package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/ledger"
)

func newOrphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Clients created by submissions that failed later",
	}

	cmd.AddCommand(newOrphansListCmd())
	cmd.AddCommand(newOrphansResolveCmd())
	return cmd
}

func newOrphansListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orphaned clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrphansList(cmd, configPath, all)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include resolved entries")
	return cmd
}

func openLedger(configPath string) (*ledger.Ledger, error) {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	gormDB, err := connectLedger(cfg)
	if err != nil {
		return nil, err
	}
	return ledger.New(gormDB, log.Named("ledger")), nil
}

func runOrphansList(cmd *cobra.Command, configPath string, all bool) error {
	l, err := openLedger(configPath)
	if err != nil {
		return err
	}
	orphans, err := l.Orphans(context.Background(), all)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(orphans) == 0 {
		fmt.Fprintln(out, "No orphaned clients.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLIENT\tNAME\tPHONE\tOUTCOME\tRESOLVED\tRECORDED")
	for _, o := range orphans {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
			o.ID, o.ClientID, o.ClientName, o.ClientPhone, o.Outcome, o.Resolved, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func newOrphansResolveCmd() *cobra.Command {
	var (
		configPath string
		note       string
	)

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark an orphaned client as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid orphan id %q", args[0])
			}
			return runOrphansResolve(cmd, configPath, uint(id), note)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().StringVarP(&note, "note", "n", "", "what was done (e.g. deleted in admin UI)")
	return cmd
}

func runOrphansResolve(cmd *cobra.Command, configPath string, id uint, note string) error {
	l, err := openLedger(configPath)
	if err != nil {
		return err
	}
	if err := l.ResolveOrphan(context.Background(), id, note); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Orphan %d resolved\n", id)
	return nil
}
