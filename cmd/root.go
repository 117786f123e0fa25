package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "metaprompt",
	Short: "Adaptive prompt orchestration with safety checks and provider fallback",
	Long: `Metaprompt runs prompts through an adaptive pipeline: it enriches the
request with session context, merges session memory, renders an
expertise-adapted prompt template, safety-checks the prompt, routes it
across LLM providers with automatic fallback, and reviews the output
before committing the exchange to memory.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".metaprompt.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
