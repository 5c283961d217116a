package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/assistantstream"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of assistantstream",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "assistantstream version %s\n", assistantstream.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
