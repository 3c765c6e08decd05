// Command weaveflow executes compiled agent workflow bundles.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "weaveflow",
	Short: "Run compiled agent workflow bundles",
	Long: `Weaveflow executes compiled workflow bundles: declarative graphs of
LLM steps, capability calls, conditions and human approval gates, with
per-run budget enforcement and a replayable trace.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")

	flagBindings := []struct {
		key  string
		flag string
	}{
		{"log_level", "log-level"},
		{"log_format", "log-format"},
	}
	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, rootCmd.PersistentFlags().Lookup(binding.flag)); err != nil {
			fmt.Fprintf(os.Stderr, "bind flag %s: %v\n", binding.flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(runCmd, validateCmd, workflowsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
