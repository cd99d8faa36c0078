package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/deskapi"
	"github.com/zulandar/benchdesk/internal/roster"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the intake API server",
		Long:  "Serves intake form sessions over HTTP. Technicians are refreshed on the roster schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	techs, err := roster.New(a.api, cfg.Roster.Refresh, log.Named("roster"))
	if err != nil {
		return err
	}
	go techs.Run(ctx)

	return deskapi.Start(ctx, deskapi.StartOpts{
		Registry:    deskapi.NewRegistry(a.lookup, a.submitter, log.Named("session")),
		Technicians: techs,
		Port:        port,
		Out:         cmd.OutOrStdout(),
		Logger:      log.Named("http"),
	})
}
