// Command donation-verifier shows the UPI payment for a donation, optionally
// reports it as paid, and waits until the profile shows the supporter badge.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var Version = "dev"

type options struct {
	apiURL    string
	statePath string
	verbose   bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "donation-verifier",
		Short:         "Confirm a CollegeStar donation from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("COLLEGESTAR_API_URL", "http://localhost:5000/api"), "base URL of the notes portal API")
	rootCmd.PersistentFlags().StringVar(&opts.statePath, "state", defaultStatePath(), "file holding credentials and local flags")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every poll")

	rootCmd.AddCommand(loginCmd(opts))
	rootCmd.AddCommand(logoutCmd(opts))
	rootCmd.AddCommand(verifyCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "collegestar.db"
	}
	return filepath.Join(dir, "collegestar", "state.db")
}
