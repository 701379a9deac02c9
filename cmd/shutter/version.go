package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/shutter"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of shutter",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "shutter version %s\n", strings.TrimSpace(shutter.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
