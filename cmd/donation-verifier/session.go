package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"collegestar/notes-portal/notes-portal-backend/internal/client"
	"collegestar/notes-portal/notes-portal-backend/internal/verification"
)

var readPasswordFunc = term.ReadPassword

// session bundles what every subcommand opens.
type session struct {
	flags  *verification.BoltFlags
	client *client.Client
	logger *zap.Logger
}

func openSession(opts *options) (*session, error) {
	logger := zap.NewNop()
	if opts.verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = dev
	}

	if err := os.MkdirAll(filepath.Dir(opts.statePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	flags, err := verification.OpenBoltFlags(opts.statePath)
	if err != nil {
		return nil, err
	}

	c := client.New(opts.apiURL, client.NewFlagCredentials(flags), client.WithLogger(logger))
	return &session{flags: flags, client: c, logger: logger}, nil
}

func (s *session) Close() {
	s.logger.Sync()
	s.flags.Close()
}

func loginCmd(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if email == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Email: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil {
					return err
				}
				email = strings.TrimSpace(line)
			}
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			creds, err := s.client.Login(cmd.Context(), email, string(pwd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", creds.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
