package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/backend"
)

func newJobCardsCmd() *cobra.Command {
	var (
		configPath string
		status     string
		technician string
		mine       bool
	)

	cmd := &cobra.Command{
		Use:   "jobcards",
		Short: "List job cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobCards(cmd, configPath, status, technician, mine)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (e.g. Pending, Assigned)")
	cmd.Flags().StringVar(&technician, "technician", "", "filter by assigned technician id")
	cmd.Flags().BoolVar(&mine, "mine", false, "only job cards assigned to the session technician")
	return cmd
}

func runJobCards(cmd *cobra.Command, configPath, status, technician string, mine bool) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	if mine {
		if cfg.Session.TechnicianID == "" {
			return fmt.Errorf("--mine requires session.technician_id")
		}
		technician = cfg.Session.TechnicianID
	}
	api, err := newBackend(cfg, log)
	if err != nil {
		return err
	}

	cards, err := api.ListJobCards(context.Background(), backend.JobCardFilter{
		Status:       status,
		TechnicianID: backend.ID(technician),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cards) == 0 {
		fmt.Fprintln(out, "No job cards.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDEVICE\tTECHNICIAN\tCREATED\tPROBLEM")
	for _, c := range cards {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.DeviceID, c.AssignedTechnicianID, c.CreationDate, truncate(c.ProblemDescription, 40))
	}
	return w.Flush()
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
