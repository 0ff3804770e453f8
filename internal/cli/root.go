// Package cli implements the feedbot command line client.
package cli

import (
	"fmt"
	"os"

	"github.com/spacesedan/feedbot/config"
	"github.com/spacesedan/feedbot/internal/clients"
	"github.com/spacesedan/feedbot/internal/logging"
	"github.com/spf13/cobra"
)

type app struct {
	env     string
	verbose bool
	cfg     config.Config
	backend *clients.BackendClient
}

// NewRootCmd returns the root command for the feedbot CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "feedbot",
		Short:         "Feedbot: brand perception analysis from social media",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	defaultEnv := os.Getenv("APP_ENV")
	if defaultEnv == "" {
		defaultEnv = "dev"
	}
	rootCmd.PersistentFlags().StringVar(&a.env, "env", defaultEnv, "environment whose config/envs file to load")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))

	return rootCmd
}

func (a *app) init() error {
	if err := config.LoadEnv(a.env); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logging.InitLogger(level)

	a.backend = clients.NewBackendClient(clients.BackendOptions{
		BaseURL:          cfg.BackendURL,
		Timeout:          cfg.RequestTimeout,
		SubmitMaxRetries: cfg.SubmitMaxRetries,
	})
	return nil
}

func exactlyOneBrand(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one brand, got %d arguments", len(args))
	}
	return nil
}
