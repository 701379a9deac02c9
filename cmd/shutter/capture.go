package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/shutter/internal/cli"
)

var captureCmd = &cobra.Command{
	Use:   "capture <url>",
	Short: "Capture a single page without a store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		fullPage, _ := cmd.Flags().GetBool("full-page")
		selector, _ := cmd.Flags().GetString("selector")
		renderTime, _ := cmd.Flags().GetFloat64("render-time")
		rawClip, _ := cmd.Flags().GetString("clip")

		clip, err := cli.ParseClip(rawClip)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx *cli.SignalContext, app *cli.App) error {
			return app.Capture(ctx, args[0], cli.CaptureOptions{
				Output:     output,
				FullPage:   fullPage,
				Selector:   selector,
				RenderTime: renderTime,
				Clip:       clip,
			})
		})
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringP("output", "o", "-", "Image path, - for stdout")
	captureCmd.Flags().Bool("full-page", false, "Capture the full scrollable page")
	captureCmd.Flags().String("selector", "", "CSS selector to await before capture")
	captureCmd.Flags().Float64("render-time", 0, "Fixed delay in milliseconds before capture")
	captureCmd.Flags().String("clip", "", "Region to capture: x,y,width,height")
}
