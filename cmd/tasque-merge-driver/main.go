// Command tasque-merge-driver is the git merge driver registered for
// .tasque/events.jsonl (spec §4.7). It takes exactly three positional
// arguments — ancestor, ours, theirs — matching git's %O %A %B
// substitution for a custom merge driver, and exits 0 on a clean merge
// (written back to the ours path) or 1 on conflict (ours left untouched,
// conflicting ids on stderr).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BumpyClock/tasque/internal/merge"
)

func main() {
	cmd := &cobra.Command{
		Use:           "tasque-merge-driver <ancestor> <ours> <theirs>",
		Short:         "Three-way merge driver for tasque event logs",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := merge.Merge3Way(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if len(res.Conflicts) > 0 {
				fmt.Fprint(os.Stderr, merge.FormatConflicts(res.Conflicts))
				os.Exit(1)
			}
			return nil
		},
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tasque-merge-driver:", err)
		os.Exit(1)
	}
}
