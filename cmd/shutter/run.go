package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/shutter/internal/cli"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the capture bridge",
	Long: `Starts the browser, watches the trigger key of the configured store and
serves the HTTP state API until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx *cli.SignalContext, app *cli.App) error {
			err := app.Run(ctx)
			if sig := ctx.Signal(); sig != nil {
				app.Logger.Info("Shutdown complete", "signal", sig.String())
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("http-addr", ":8080", "HTTP API address, empty to disable")
	runCmd.Flags().Int("queue-size", 16, "Pending triggers kept while a capture runs")
	runCmd.Flags().Bool("distributed-lock", false, "Coordinate replicas through Redis")
}
