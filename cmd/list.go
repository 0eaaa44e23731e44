package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/fault"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every published package with its fault level",
	Long: `Prints one line per package in ID order, then how many packages sit in
each recovery band above NoAction.

  --faulted   Show only packages above Clean`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().Bool("faulted", false, "only packages above Clean")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	faulted, _ := cmd.Flags().GetBool("faulted")
	return withRegistry(cmd, false, func(_ context.Context, s *session) error {
		recs := s.reg.Records()
		if faulted {
			kept := recs[:0]
			for _, rec := range recs {
				if rec.Fault > fault.Clean {
					kept = append(kept, rec)
				}
			}
			recs = kept
		}
		s.out.Listing(recs)
		return nil
	})
}
