package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath    string
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the access token and technician id",
		Long: `Signs in to the backend and prints the access token and user id to put
into benchdesk.yaml (api.access_token, session.technician_id) or the
BENCHDESK_ACCESS_TOKEN and BENCHDESK_TECHNICIAN_ID environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, username, passwordStdin)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to benchdesk config file")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagRequired("username")
	return cmd
}

// readPassword prompts without echo on a terminal and otherwise reads one
// line from in.
func readPassword(cmd *cobra.Command, in io.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			pw, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(pw), nil
		}
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, configPath, username string, passwordStdin bool) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	password, err := readPassword(cmd, cmd.InOrStdin(), passwordStdin)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	api, err := newBackend(cfg, log)
	if err != nil {
		return err
	}
	login, err := api.Login(context.Background(), username, password)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s (%s)\n", login.Username, login.Role)
	fmt.Fprintf(out, "access_token: %s\n", login.AccessToken)
	fmt.Fprintf(out, "technician_id: %s\n", login.ID)
	return nil
}
