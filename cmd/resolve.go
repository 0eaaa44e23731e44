package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <start> <goal>",
	Short: "Find a dependency path between two packages",
	Long: `Runs one resolution strategy over the dependency graph.

  --strategy   eulerian, hamiltonian, astar, or hybrid (default hybrid)
  --record     Raise the start package's fault level when resolution fails

Without --record the registry is not modified.`,
	Args: cobra.ExactArgs(2),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("strategy", string(resolve.Hybrid), "resolution strategy")
	resolveCmd.Flags().Bool("record", false, "raise the start package's fault on failure")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("strategy")
	kind, err := resolve.ParseKind(raw)
	if err != nil {
		return err
	}
	record, _ := cmd.Flags().GetBool("record")
	start, goal := args[0], args[1]

	return withRegistry(cmd, record, func(ctx context.Context, s *session) error {
		if !record {
			out, err := s.reg.Resolve(ctx, kind, start, goal)
			if err != nil {
				return err
			}
			s.out.Outcome(out)
			return nil
		}

		out, change, err := s.reg.ResolveFor(ctx, kind, start, goal)
		if change != nil {
			s.out.FaultChange(change.PackageID, change.Transition, change.Reason)
			if saveErr := s.reg.Save(ctx, s.st); saveErr != nil {
				s.log.Error("save after failed resolution", "error", saveErr)
			}
		}
		if err != nil {
			return err
		}
		s.out.Outcome(out)
		return nil
	})
}
