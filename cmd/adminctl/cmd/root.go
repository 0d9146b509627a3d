package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-admin-console/browser"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/internal/logging"
	"github.com/spf13/cobra"
)

const appName = "adminctl"

var (
	consoleURL string
	email      string
	password   string
	logLevel   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "adminctl drives an admin console session from the command line",
	Long: `A command-line client for the admin console. It signs in through the console API exactly as the
browser does, keeps the session fresh with the same refresh scheduler and never sees the HTTP-only tokens.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup("DEV", logLevel)
		if email == "" || password == "" {
			return fmt.Errorf("--email and --password (or ADMINCTL_EMAIL / ADMINCTL_PASSWORD) are required")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&consoleURL, "url", config.GetEnv("ADMINCTL_URL", "http://localhost:8080"), "admin console base URL")
	rootCmd.PersistentFlags().StringVar(&email, "email", config.GetEnv("ADMINCTL_EMAIL", ""), "admin email")
	rootCmd.PersistentFlags().StringVar(&password, "password", config.GetEnv("ADMINCTL_PASSWORD", ""), "admin password")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for each console API call")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(catalogCmd)
}

// signIn opens a browser-context session and logs in.
func signIn(ctx context.Context, options ...browser.SessionOption) (*browser.Session, error) {
	client, err := browser.NewClient(consoleURL, browser.WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	s := browser.NewSession(client, options...)
	if !s.Facade.Login(ctx, email, password) {
		return nil, fmt.Errorf("login to %s failed", consoleURL)
	}
	return s, nil
}
