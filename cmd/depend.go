package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dependCmd = &cobra.Command{
	Use:   "depend <package-id> <target>",
	Short: "Declare a dependency between packages",
	Long: `Adds or replaces the dependency of a package on target.

  --range      Accepted target versions, e.g. "^1.4", ">=1.0.0 <2.0.0",
               "2.stable.*.stable.*.stable" (default "*")
  --optional   An unsatisfied optional dependency only raises LowWarning

The edge is validated against the target's published version. An edge that
closes a dependency cycle raises every package on the cycle to HighDanger.`,
	Args: cobra.ExactArgs(2),
	RunE: runDepend,
}

func init() {
	dependCmd.Flags().String("range", "*", "accepted target versions")
	dependCmd.Flags().Bool("optional", false, "mark the dependency optional")
	rootCmd.AddCommand(dependCmd)
}

func runDepend(cmd *cobra.Command, args []string) error {
	rng, _ := cmd.Flags().GetString("range")
	optional, _ := cmd.Flags().GetBool("optional")
	edge, err := dependencyEdge(args[1], rng, optional)
	if err != nil {
		return err
	}

	return withRegistry(cmd, true, func(ctx context.Context, s *session) error {
		changes, err := s.reg.AddDependency(ctx, args[0], edge)
		if err != nil {
			return err
		}
		s.out.Success(fmt.Sprintf("%s depends on %s %s", args[0], edge.Target, edge.Range))
		for _, c := range changes {
			s.out.FaultChange(c.PackageID, c.Transition, c.Reason)
		}
		return nil
	})
}
