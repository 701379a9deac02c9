package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/shutter/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx *cli.SignalContext, app *cli.App) error {
			return app.Get(ctx, args[0])
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a state",
	Long: `Writes value under key. Values that parse as JSON (numbers, booleans,
objects) are stored decoded, anything else as a string.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ack, _ := cmd.Flags().GetBool("ack")
		return withApp(cmd, func(ctx *cli.SignalContext, app *cli.App) error {
			return app.Set(ctx, args[0], args[1], ack)
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the stored keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx *cli.SignalContext, app *cli.App) error {
			return app.List(ctx)
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <url>",
	Short: "Ask a running bridge to capture url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx *cli.SignalContext, app *cli.App) error {
			return app.Trigger(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd, setCmd, lsCmd, triggerCmd)

	setCmd.Flags().Bool("ack", false, "Write as an acknowledgement")
}
