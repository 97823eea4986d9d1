package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "radio",
	Short: "onair is an autonomous radio broadcaster",
	Long: `onair interleaves pre-rendered music, synthesized commentary, and
jingles into a single PCM stream and feeds it at wall-clock rate to a live
RTMP ingest process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCatalogCmd)
}

// Execute runs the command tree, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
