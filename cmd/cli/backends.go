package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/reviewd/internal/config"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the configured model backends in fallback order.",
	RunE:  runBackends,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bold := color.New(color.Bold)
	for _, b := range cfg.Backends {
		bold.Fprintf(cmd.OutOrStdout(), "%s", b.Name)
		keyState := color.GreenString("key set")
		if b.APIKeyEnv != "" && b.APIKey() == "" {
			keyState = color.RedString("key missing (%s)", b.APIKeyEnv)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  provider=%s model=%s priority=%d timeout=%s  %s\n",
			b.Provider, b.Model, b.Priority, b.Timeout, keyState)
	}
	return nil
}
