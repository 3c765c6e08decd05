package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/weaveflow/weaveflow/ir"
)

var checkEnv bool

var validateCmd = &cobra.Command{
	Use:   "validate <bundle>",
	Short: "Check a compiled bundle for structural problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := ir.Load(args[0])
		if err != nil {
			return err
		}
		if err := ir.Validate(bundle); err != nil {
			return err
		}
		fmt.Printf("Validation passed: %d workflows, %d agents, %d capabilities\n",
			len(bundle.Workflows), len(bundle.Agents), len(bundle.Capabilities))
		if checkEnv {
			warnMissingEnv(bundle)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&checkEnv, "check-env", false, "warn when credential environment variables are unset")
}

// warnMissingEnv reports credentials that resolve to nothing in the current
// environment. An unset credential fails at call time, not at load time, so
// this is a warning rather than a validation error.
func warnMissingEnv(bundle *ir.Bundle) {
	for _, name := range slices.Sorted(maps.Keys(bundle.Providers)) {
		p := bundle.Providers[name]
		if p.APIKey.EnvVar != "" && p.APIKey.Resolve() == "" {
			fmt.Printf("warning: provider %s: %s is not set\n", name, p.APIKey.EnvVar)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(bundle.Servers)) {
		s := bundle.Servers[name]
		if s.AuthToken.EnvVar != "" && s.AuthToken.Resolve() == "" {
			fmt.Printf("warning: server %s: %s is not set\n", name, s.AuthToken.EnvVar)
		}
	}
}
