package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/benchdesk/internal/backendtest"
)

func newSandboxCmd() *cobra.Command {
	var (
		port     int
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve an in-memory backend for local testing",
		Long: `Starts an in-memory implementation of the repair-shop backend with one
technician account. Point api.endpoint at it to try the intake flow without a
real backend. Data is lost on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox(cmd, port, username, password)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 5000, "port to listen on")
	cmd.Flags().StringVar(&username, "username", "tech", "technician username")
	cmd.Flags().StringVar(&password, "password", "tech", "technician password")
	return cmd
}

func runSandbox(cmd *cobra.Command, port int, username, password string) error {
	out := cmd.OutOrStdout()
	fake := backendtest.New()
	techID := fake.AddTechnician(username, password)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		case <-ctx.Done():
		}
		srv.Shutdown(context.Background())
	}()

	fmt.Fprintf(out, "Sandbox backend running at http://localhost:%d\n", port)
	fmt.Fprintf(out, "Technician %q (password %q) has id %s\n", username, password, techID)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("sandbox: %w", err)
	}
	return nil
}
