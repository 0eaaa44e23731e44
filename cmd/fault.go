package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/fault"
)

var faultCmd = &cobra.Command{
	Use:   "fault <package-id> <level>",
	Short: "Report a fault observed on a package",
	Long: `Raises the fault level of a package. The level is a name such as
MediumDanger or its number 0-17. Levels only rise; entering a new band
runs its side effect:

  NotifyObservers       observers receive an opt-in update
  RequestManualReview   promotion blocked until approved
  FreezeUpdates         promotion blocked until recovered
  RollbackToStable      reverted to the last stable release
  SystemReset           fetch refused at SystemPanic`,
	Args: cobra.ExactArgs(2),
	RunE: runFault,
}

var recoverCmd = &cobra.Command{
	Use:   "recover <package-id> <action>",
	Short: "Clear a package's fault with a recovery action",
	Long: `Returns a package to Clean. The action is rollback (RollbackToStable) or
reset (SystemReset). Rollback restores the last stable release; reset keeps
the current version, clears the update count, and records it as stable.`,
	Args: cobra.ExactArgs(2),
	RunE: runRecover,
}

var approveCmd = &cobra.Command{
	Use:   "approve <package-id>",
	Short: "Clear a pending manual review",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

func init() {
	faultCmd.Flags().String("reason", "", "why the fault was reported")
	rootCmd.AddCommand(faultCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(approveCmd)
}

func runFault(cmd *cobra.Command, args []string) error {
	level, err := fault.ParseLevel(args[1])
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")

	return withRegistry(cmd, true, func(ctx context.Context, s *session) error {
		ch, err := s.reg.ReportFault(ctx, args[0], level, reason)
		if err != nil {
			return err
		}
		s.out.FaultChange(ch.PackageID, ch.Transition, ch.Reason)
		return nil
	})
}

func runRecover(cmd *cobra.Command, args []string) error {
	action, err := fault.ParseAction(args[1])
	if err != nil {
		return err
	}
	return withRegistry(cmd, true, func(ctx context.Context, s *session) error {
		rec, err := s.reg.Recover(ctx, args[0], action)
		if err != nil {
			return err
		}
		s.out.Success(fmt.Sprintf("%s recovered (%s)", rec.PackageID, action))
		s.out.Record(rec)
		return nil
	})
}

func runApprove(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd, true, func(ctx context.Context, s *session) error {
		rec, err := s.reg.Approve(ctx, args[0])
		if err != nil {
			return err
		}
		s.out.Success(fmt.Sprintf("%s approved at %s", rec.PackageID, s.out.Badge(rec.Fault)))
		return nil
	})
}
