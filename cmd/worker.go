package cmd

import (
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume audio render tasks from the Redis queue",
	Long:  "worker renders interval audio enqueued by the API. It requires redis and audio.use_queue=true.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		worker, err := application.NewRenderWorker()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		application.WatchConfig(ctx)

		return worker.Run(ctx)
	},
}
