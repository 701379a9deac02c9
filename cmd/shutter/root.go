package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aretw0/shutter/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "shutter",
	Short: "Shutter captures web pages when a state store asks for it",
	Long: `Shutter watches a key/value state store for capture requests, renders
the requested page in a headless browser and acknowledges the request once the
screenshot is written.`,
	SilenceUsage: true,
}

// flagKeys maps flags onto configuration keys. Only flags set on the command
// line override the file and environment.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"store":            "store.driver",
	"redis-addr":       "store.redis_addr",
	"prefix":           "store.prefix",
	"engine":           "browser.engine",
	"remote-url":       "browser.remote_url",
	"headless":         "browser.headless",
	"http-addr":        "http.addr",
	"queue-size":       "bridge.queue_size",
	"distributed-lock": "bridge.distributed_lock",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "auto", "Log format: auto, text or json")
	flags.String("store", "memory", "State store driver: memory or redis")
	flags.String("redis-addr", "localhost:6379", "Redis address")
	flags.String("prefix", "shutter.0.", "Prefix of the state keys")
	flags.String("engine", "chrome", "Browser engine: chrome or playwright")
	flags.String("remote-url", "", "Attach to a running Chrome (ws://...) instead of starting one")
	flags.Bool("headless", true, "Run the browser without a window")
}

// newApp loads the configuration for cmd, layering the flags that were set.
func newApp(cmd *cobra.Command) (*cli.App, error) {
	path, _ := cmd.Flags().GetString("config")

	overrides := map[string]any{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})

	return cli.NewApp(cli.RunOptions{ConfigPath: path, Overrides: overrides})
}

// withApp runs fn with a loaded App and a signal-aware context.
func withApp(cmd *cobra.Command, fn func(*cli.SignalContext, *cli.App) error) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	sigCtx := cli.NewSignalContext(cmd.Context())
	defer sigCtx.Cancel()

	return cli.HandleExecutionError(fn(sigCtx, app))
}
