package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/index"
	"github.com/papapumpkin/semverx/internal/manifest"
	"github.com/papapumpkin/semverx/internal/registry"
	"github.com/papapumpkin/semverx/internal/semverx"
)

var publishCmd = &cobra.Command{
	Use:   "publish <manifest>",
	Short: "Publish a package from a TOML or YAML manifest",
	Long: `Reads a package.toml or package.yaml manifest, validates it, and inserts
the package into the registry.

  --artifact   Artifact file to checksum (and sign, when seal.key_file is set)
  --corpus     Known-good artifacts the coherence gate compares against

Dependencies on packages that are not yet published are kept and checked
once the target is published.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

var promoteCmd = &cobra.Command{
	Use:   "promote <package-id> <version>",
	Short: "Move a published package to a new version",
	Long: `Replaces the version of a published package, for example moving a
component from experimental to stable. Refused while the package is frozen
or awaiting manual review.`,
	Args: cobra.ExactArgs(2),
	RunE: runPromote,
}

func init() {
	for _, c := range []*cobra.Command{publishCmd, promoteCmd} {
		c.Flags().String("artifact", "", "artifact file")
		c.Flags().StringSlice("corpus", nil, "reference artifacts for the coherence gate")
		rootCmd.AddCommand(c)
	}
	promoteCmd.Flags().String("description", "", "replace the package description")
}

func runPublish(cmd *cobra.Command, args []string) error {
	m, err := manifest.NewLoader().LoadFile(args[0])
	if err != nil {
		return err
	}
	rec, err := m.Record()
	if err != nil {
		return err
	}
	art, err := readArtifact(cmd)
	if err != nil {
		return err
	}

	return withRegistry(cmd, true, func(ctx context.Context, s *session) error {
		out, err := s.reg.Publish(ctx, rec, art)
		if err != nil {
			return err
		}
		s.out.Success(fmt.Sprintf("published %s %s", out.PackageID, out.Version))
		s.out.Record(out)
		return nil
	})
}

func runPromote(cmd *cobra.Command, args []string) error {
	v, err := semverx.Parse(args[1])
	if err != nil {
		return err
	}
	art, err := readArtifact(cmd)
	if err != nil {
		return err
	}
	p := registry.Promotion{Version: v, Artifact: art}

	return withRegistry(cmd, true, func(ctx context.Context, s *session) error {
		if cmd.Flags().Changed("description") {
			cur, err := s.reg.Lookup(args[0])
			if err != nil {
				return err
			}
			meta := cur.Metadata
			meta.Description, _ = cmd.Flags().GetString("description")
			p.Metadata = &meta
		}
		out, err := s.reg.Promote(ctx, args[0], p)
		if err != nil {
			return err
		}
		s.out.Success(fmt.Sprintf("promoted %s to %s", out.PackageID, out.Version))
		s.out.Record(out)
		return nil
	})
}

// readArtifact loads the --artifact and --corpus files, if any.
func readArtifact(cmd *cobra.Command) (registry.Artifact, error) {
	var art registry.Artifact
	if path, _ := cmd.Flags().GetString("artifact"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return art, fmt.Errorf("read artifact: %w", err)
		}
		art.Data = data
	}
	corpus, _ := cmd.Flags().GetStringSlice("corpus")
	for _, path := range corpus {
		data, err := os.ReadFile(path)
		if err != nil {
			return art, fmt.Errorf("read corpus: %w", err)
		}
		art.Corpus = append(art.Corpus, data)
	}
	return art, nil
}

// dependencyEdge builds an edge from command-line values.
func dependencyEdge(target, rng string, optional bool) (index.DependencyEdge, error) {
	r, err := semverx.ParseRange(rng)
	if err != nil {
		return index.DependencyEdge{}, err
	}
	return index.DependencyEdge{Target: target, Range: r, Optional: optional}, nil
}
