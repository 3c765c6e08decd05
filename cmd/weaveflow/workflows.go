package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/weaveflow/weaveflow/ir"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows <bundle>",
	Short: "List the workflows in a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := ir.Load(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WORKFLOW\tENTRY\tSTEPS\tPOLICY")
		for _, name := range bundle.WorkflowNames() {
			wf := bundle.Workflows[name]
			policy := wf.Policy
			if policy == "" {
				policy = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", name, wf.Entry, len(wf.Steps), policy)
		}
		return w.Flush()
	},
}
