package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/depgraph"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank packages by how much of the registry depends on them",
	Long: `Scores every package by PageRank over dependents blended with
betweenness centrality, most critical first.

  --alpha   Weight of PageRank against betweenness (default 0.6)
  --top     Show only the first N packages (0 = all)`,
	Args: cobra.NoArgs,
	RunE: runRank,
}

var installOrderCmd = &cobra.Command{
	Use:   "install-order <package-id>",
	Short: "List a package's transitive dependencies, dependencies first",
	Long: `Prints the install order for the dependency closure of a package. A
cycle in the closure raises its members to HighDanger and fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstallOrder,
}

var treeCmd = &cobra.Command{
	Use:   "tree <package-id>",
	Short: "Draw the dependency tree of a package",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

func init() {
	defaults := depgraph.DefaultRankOptions()
	rankCmd.Flags().Float64("alpha", defaults.Alpha, "PageRank weight against betweenness")
	rankCmd.Flags().Int("top", 0, "show only the first N packages")
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(installOrderCmd)
	rootCmd.AddCommand(treeCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	opts := depgraph.DefaultRankOptions()
	opts.Alpha, _ = cmd.Flags().GetFloat64("alpha")
	top, _ := cmd.Flags().GetInt("top")

	return withRegistry(cmd, false, func(_ context.Context, s *session) error {
		ranked := s.reg.Rank(opts)
		if top > 0 && top < len(ranked) {
			ranked = ranked[:top]
		}
		s.out.Ranking(ranked)
		return nil
	})
}

func runInstallOrder(cmd *cobra.Command, args []string) error {
	// A cycle raises faults, so the registry is saved even when ordering fails.
	return withRegistry(cmd, false, func(ctx context.Context, s *session) error {
		order, err := s.reg.InstallOrder(ctx, args[0])
		if err != nil {
			if saveErr := s.reg.Save(ctx, s.st); saveErr != nil {
				s.log.Error("save after failed install order", "error", saveErr)
			}
			return err
		}
		s.out.InstallOrder(args[0], order)
		return nil
	})
}

func runTree(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd, false, func(_ context.Context, s *session) error {
		return s.out.Tree(s.reg.Graph(), args[0])
	})
}
