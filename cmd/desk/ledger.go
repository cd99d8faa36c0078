package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/db"
	"github.com/zulandar/benchdesk/internal/ledger"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Submission ledger commands",
	}

	cmd.AddCommand(newLedgerMigrateCmd())
	cmd.AddCommand(newLedgerListCmd())
	cmd.AddCommand(newLedgerShowCmd())
	return cmd
}

func newLedgerMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger database and tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	return cmd
}

func runLedgerMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Ledger.Driver == db.DriverMySQL {
		adminDB, err := db.ConnectAdmin(db.Options{
			Host:     cfg.Ledger.Host,
			Port:     cfg.Ledger.Port,
			User:     cfg.Ledger.User,
			Password: cfg.Ledger.Password,
		})
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, cfg.Ledger.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Ledger.Database)
	}

	if _, err := connectLedger(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func newLedgerListCmd() *cobra.Command {
	var (
		configPath string
		outcome    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedgerList(cmd, configPath, outcome, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (e.g. created, device_creation_failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max rows (0 = all)")
	return cmd
}

func runLedgerList(cmd *cobra.Command, configPath, outcome string, limit int) error {
	l, err := openLedger(configPath)
	if err != nil {
		return err
	}
	subs, err := l.Submissions(context.Background(), ledger.ListOpts{Outcome: outcome, Limit: limit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(subs) == 0 {
		fmt.Fprintln(out, "No submissions.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOUTCOME\tCLIENT\tDEVICE\tJOB CARD\tFINISHED")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Outcome, s.ClientID, s.DeviceID, s.JobCardID, s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func newLedgerShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Show one recorded submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(configPath)
			if err != nil {
				return err
			}
			s, err := l.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submission:  %s\n", s.ID)
			fmt.Fprintf(out, "Session:     %s\n", s.SessionID)
			fmt.Fprintf(out, "Outcome:     %s\n", s.Outcome)
			fmt.Fprintf(out, "Client:      %s (%s)\n", s.ClientID, createdLabel(s.ClientCreated))
			fmt.Fprintf(out, "Device:      %s (%s)\n", s.DeviceID, createdLabel(s.DeviceCreated))
			fmt.Fprintf(out, "Technician:  %s\n", s.TechnicianID)
			fmt.Fprintf(out, "Job card:    %s\n", s.JobCardID)
			fmt.Fprintf(out, "Email sent:  %t\n", s.EmailSent)
			fmt.Fprintf(out, "Compensated: %t\n", s.Compensated)
			fmt.Fprintf(out, "Elapsed:     %s\n", s.FinishedAt.Sub(s.StartedAt))
			if s.Error != "" {
				fmt.Fprintf(out, "Error:       %s\n", s.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	return cmd
}
