package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/intake"
)

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up existing client and device records",
	}

	cmd.AddCommand(newLookupClientCmd())
	cmd.AddCommand(newLookupDeviceCmd())
	return cmd
}

func newLookupClientCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "client <phone>",
		Short: "Find a client by phone number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, configPath, intake.EntityClient, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	return cmd
}

func newLookupDeviceCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "device <serial>",
		Short: "Find a device by serial number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, configPath, intake.EntityDevice, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	return cmd
}

func runLookup(cmd *cobra.Command, configPath string, entity intake.Entity, key string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	api, err := newBackend(cfg, log)
	if err != nil {
		return err
	}
	svc := intake.NewLookupService(api, log.Named("lookup"))

	ctx := context.Background()
	var msg intake.Message
	if entity == intake.EntityDevice {
		msg = svc.LookupDevice(ctx, key)
	} else {
		msg = svc.LookupClient(ctx, key)
	}
	return printLookup(cmd.OutOrStdout(), msg)
}

// printLookup renders a lookup message. A failed lookup is returned as an error.
func printLookup(out io.Writer, msg intake.Message) error {
	if n, ok := intake.LookupNotice(msg); ok {
		printNotice(out, n)
	}
	switch m := msg.(type) {
	case intake.ClientFound:
		r := m.Record
		fmt.Fprintf(out, "Client %s\n", r.ID)
		fmt.Fprintf(out, "  Name:    %s\n", r.Name)
		fmt.Fprintf(out, "  Email:   %s\n", r.Email)
		fmt.Fprintf(out, "  Phone:   %s\n", r.PhoneNumber)
		fmt.Fprintf(out, "  Address: %s\n", r.Address)
	case intake.ClientAbsent:
		fmt.Fprintf(out, "No client with phone %s\n", m.Phone)
	case intake.DeviceFound:
		r := m.Record
		fmt.Fprintf(out, "Device %s (client %s)\n", r.ID, r.ClientID)
		fmt.Fprintf(out, "  Brand:    %s\n", r.Brand)
		fmt.Fprintf(out, "  Model:    %s\n", r.DeviceModel)
		fmt.Fprintf(out, "  Serial:   %s\n", r.DeviceSerialNumber)
		fmt.Fprintf(out, "  Storage:  %s (%s)\n", r.HDDOrSSD, r.HDDOrSSDOnboard)
		fmt.Fprintf(out, "  Memory:   %s (%s)\n", r.Memory, r.MemoryOnboard)
		fmt.Fprintf(out, "  Warranty: %s\n", r.WarrantyStatus)
	case intake.DeviceAbsent:
		fmt.Fprintf(out, "No device with serial %s\n", m.Serial)
	case intake.LookupError:
		return m
	}
	return nil
}
