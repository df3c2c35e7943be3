package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surge/internal/loadtest/executor"
	"github.com/wesleyorama2/surge/internal/loadtest/workload"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a workload file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, _, err := workload.Load(args[0])
			if err != nil {
				return err
			}
			opts := w.Options
			opts.ApplyDefaults()

			out := cmd.OutOrStdout()
			name := w.Name
			if name == "" {
				name = args[0]
			}
			fmt.Fprintf(out, "✓ %s is valid\n", name)
			fmt.Fprintf(out, "  executor:   %s\n", executor.TypeFor(opts))
			fmt.Fprintf(out, "  thresholds: %d metric(s)\n", len(opts.Thresholds))
			fmt.Fprintf(out, "  setup:      %t\n", w.Setup != nil)
			fmt.Fprintf(out, "  teardown:   %t\n", w.Teardown != nil)
			return nil
		},
	}
}
