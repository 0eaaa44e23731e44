package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/fault"
	"github.com/papapumpkin/semverx/internal/observer"
)

var subscribeDemoCmd = &cobra.Command{
	Use:   "subscribe-demo <package-id>",
	Short: "Attach observers to a package and show the updates they receive",
	Long: `Subscribes in-process observers to a package, optionally reports a fault
or promotes it, and prints every update the observers receive. Observers
live only for the duration of the command.

  --observers   Number of observers to attach (default 1)
  --level       Fault level to report after subscribing
  --reason      Reason recorded with the fault`,
	Args: cobra.ExactArgs(1),
	RunE: runSubscribeDemo,
}

func init() {
	subscribeDemoCmd.Flags().Int("observers", 1, "observers to attach")
	subscribeDemoCmd.Flags().String("level", "", "fault level to report")
	subscribeDemoCmd.Flags().String("reason", "subscribe-demo", "fault reason")
	rootCmd.AddCommand(subscribeDemoCmd)
}

func runSubscribeDemo(cmd *cobra.Command, args []string) error {
	id := args[0]
	n, _ := cmd.Flags().GetInt("observers")
	rawLevel, _ := cmd.Flags().GetString("level")
	reason, _ := cmd.Flags().GetString("reason")
	var level fault.Level
	if rawLevel != "" {
		l, err := fault.ParseLevel(rawLevel)
		if err != nil {
			return err
		}
		level = l
	}

	return withRegistry(cmd, rawLevel != "", func(ctx context.Context, s *session) error {
		ch := observer.NewChannelObserver(n * 4)
		for i := range n {
			var obs observer.Observer = ch
			if i > 0 {
				obs = observer.LogObserver{Logger: s.log.Logger.With("observer", i)}
			}
			oid, err := s.reg.Subscribe(id, obs)
			if err != nil {
				return err
			}
			s.out.Info(fmt.Sprintf("observer %s subscribed to %s", oid, id))
		}
		infos, err := s.reg.Observers(id)
		if err != nil {
			return err
		}
		s.out.Info(fmt.Sprintf("%s has %d observers", id, len(infos)))
		if rawLevel == "" {
			return nil
		}

		change, err := s.reg.ReportFault(ctx, id, level, reason)
		if err != nil {
			return err
		}
		s.out.FaultChange(change.PackageID, change.Transition, change.Reason)
		for {
			select {
			case u := <-ch.Updates():
				s.out.Update(u)
			default:
				if !change.BandChanged() {
					s.out.Info("no band change, observers not notified")
				}
				return nil
			}
		}
	})
}
