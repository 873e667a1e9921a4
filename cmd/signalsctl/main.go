package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "signalsctl",
		Short:         "Operator tooling for the trading signals key-value store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/default.yaml", "Path to the service config file")

	rootCmd.AddCommand(rateLimitCmd(&configPath))
	rootCmd.AddCommand(cacheCmd(&configPath))
	rootCmd.AddCommand(webhookCmd(&configPath))
	return rootCmd
}
