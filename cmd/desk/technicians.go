package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTechniciansCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "technicians",
		Short: "List technicians that job cards can be assigned to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTechnicians(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	return cmd
}

func runTechnicians(cmd *cobra.Command, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	api, err := newBackend(cfg, log)
	if err != nil {
		return err
	}

	techs, err := api.ListTechnicians(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(techs) == 0 {
		fmt.Fprintln(out, "No technicians.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\t")
	for _, t := range techs {
		marker := ""
		if t.ID.String() == cfg.Session.TechnicianID {
			marker = "(you)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Username, marker)
	}
	return w.Flush()
}
