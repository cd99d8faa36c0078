package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/intake"
	"gopkg.in/yaml.v3"
)

func newSubmitCmd() *cobra.Command {
	var (
		configPath string
		file       string
		technician string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job card from a YAML form file",
		Long: `Reads form values from a YAML file, looks up the phone number and serial
number like the intake form does, then creates any missing client and device
records and the job card.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, configPath, file, technician)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with form values (- for stdin)")
	cmd.Flags().StringVarP(&technician, "technician", "t", "", "technician id to assign (default: session technician)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// readValues decodes form values over the initial values of a fresh form.
func readValues(r io.Reader) (intake.FormValues, error) {
	v := intake.InitialValues()
	data, err := io.ReadAll(r)
	if err != nil {
		return v, fmt.Errorf("read form values: %w", err)
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("parse form values: %w", err)
	}
	return v, nil
}

func runSubmit(cmd *cobra.Command, configPath, file, technician string) error {
	out := cmd.OutOrStdout()

	var in io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open form values: %w", err)
		}
		defer f.Close()
		in = f
	}
	values, err := readValues(in)
	if err != nil {
		return err
	}
	if technician != "" {
		values.AssignedTechnician = intake.ID(technician)
	}

	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.newSession()
	defer sess.Close()
	if err := sess.SetValues(values); err != nil {
		return err
	}

	// Same order as the form: phone, then serial.
	msg, _, err := sess.LookupClient(ctx, values.ClientPhone)
	if err != nil {
		return err
	}
	if n, ok := intake.LookupNotice(msg); ok {
		printNotice(out, n)
	}
	msg, _, err = sess.LookupDevice(ctx, values.DeviceSerialNumber)
	if err != nil {
		return err
	}
	if n, ok := intake.LookupNotice(msg); ok {
		printNotice(out, n)
	}

	res, err := sess.Submit(ctx)
	if err != nil {
		return err
	}
	printResult(out, res)
	if !res.Succeeded() {
		return fmt.Errorf("submission %s: %s", res.SubmissionID, res.Outcome)
	}
	return nil
}

// printResult writes the outcome notice and the ids the attempt produced.
func printResult(out io.Writer, res intake.Result) {
	printNotice(out, intake.OutcomeNotice(res))
	fmt.Fprintf(out, "Submission: %s (%s)\n", res.SubmissionID, res.Outcome)
	if !res.ClientID.IsZero() {
		fmt.Fprintf(out, "Client:     %s (%s)\n", res.ClientID, createdLabel(res.ClientCreated))
	}
	if !res.DeviceID.IsZero() {
		fmt.Fprintf(out, "Device:     %s (%s)\n", res.DeviceID, createdLabel(res.DeviceCreated))
	}
	if res.JobCard != nil {
		fmt.Fprintf(out, "Job card:   %s (technician %s)\n", res.JobCard.ID, res.TechnicianID)
	}
	switch {
	case res.Compensated:
		fmt.Fprintf(out, "Client %s was deleted again.\n", res.ClientID)
	case res.OrphanedClient:
		fmt.Fprintf(out, "Client %s has no job card; see 'desk orphans list'.\n", res.ClientID)
	}
	if res.Err != nil && !res.Succeeded() {
		fmt.Fprintf(out, "Error: %v\n", res.Err)
	}
}
