package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <package-id>",
	Short: "Show a package record",
	Long: `Prints the record for a package: version, fault level and band, flags,
dependencies, and dependents.

  --fetch    Check the package as an installer would; packages at
             SystemPanic are refused
  --verify   Compare an artifact file against the recorded checksum`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	lookupCmd.Flags().Bool("fetch", false, "refuse packages at SystemPanic")
	lookupCmd.Flags().String("verify", "", "artifact file to verify against the recorded checksum")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	id := args[0]
	fetch, _ := cmd.Flags().GetBool("fetch")
	verify, _ := cmd.Flags().GetString("verify")

	return withRegistry(cmd, false, func(ctx context.Context, s *session) error {
		rec, err := s.reg.Lookup(id)
		if fetch {
			rec, err = s.reg.Fetch(ctx, id)
		}
		if err != nil {
			return err
		}
		s.out.Record(rec)

		if verify == "" {
			return nil
		}
		data, err := os.ReadFile(verify)
		if err != nil {
			return fmt.Errorf("read artifact: %w", err)
		}
		if err := s.reg.VerifyArtifact(id, data); err != nil {
			return err
		}
		s.out.Success("artifact matches " + rec.Checksum)
		return nil
	})
}
