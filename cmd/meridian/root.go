package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Meridian - resilient LLM edge gateway",
	Long: `Meridian is an edge gateway for LLM applications. It routes chat
completion requests across multiple backend providers, protecting each with
a circuit breaker and retry policy, and balancing load by round-robin,
latency, connections, weight, or cost.

Providers, routing rules, and resilience settings live in a YAML file that
reloads without a restart.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
