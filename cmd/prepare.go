package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare-intervals",
	Short: "Create every interval instance in an octave range and render its audio",
	Long: `prepare-intervals creates the intervals of every type and all of their
instances between --lowest and --highest octave, then renders audio for the
instances that have none. With audio.use_queue the renders are enqueued for
the worker instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lowest, _ := cmd.Flags().GetInt("lowest")
		highest, _ := cmd.Flags().GetInt("highest")
		workers, _ := cmd.Flags().GetInt("workers")

		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signalContext()
		defer stop()

		report, err := application.Services.Prepare.PrepareIntervals(ctx, lowest, highest, workers)
		if report != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "intervals: %d, instances created: %d, rendered: %d, failed: %d\n",
				report.Intervals, report.InstancesCreated, report.Rendered, report.Failed)
		}
		return err
	},
}

func init() {
	prepareCmd.Flags().Int("lowest", 2, "Lowest octave")
	prepareCmd.Flags().Int("highest", 5, "Highest octave")
	prepareCmd.Flags().Int("workers", 4, "Number of concurrent renders")
}
