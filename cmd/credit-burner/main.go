package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "credit-burner",
		Short: "Azure Credit Burner - Parallel LLM repository analysis",
		Long: `Azure Credit Burner analyzes GitHub repositories with Azure OpenAI.
It expands configured repositories into multi-turn analysis conversations,
spreads the calls across regional endpoints, and stores every answer as a
durable JSON record.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
