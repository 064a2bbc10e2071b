// Package cmd implements the cdist command-line interface: a cobra root
// command plus the config/install/banner subcommands that drive the
// orchestrator.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cdist/config"
	"cdist/log"
)

var (
	cdistHome string
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "cdist",
	Short:         "cdist configures hosts over SSH using a push-mode object store",
	Long:          "cdist declares configuration objects with shell manifests, gathers facts with explorers, and pushes generated code to each target host over SSH.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cdistHome, "cdist-home", "c", "", "configuration tree root (default /etc/cdist or ~/.cdist)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(bannerCmd, configCmd, installCmd)
}

// Execute runs the CLI, returning the error cobra produced (if any) so
// main.go controls the process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *log.Logger {
	return log.New(log.Options{Debug: debugFlag})
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cdistHome)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	cfg.Debug = debugFlag
	return cfg, nil
}
