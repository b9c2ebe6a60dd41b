package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/use-agent/chapterwatch/api/handler"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the chapterwatch version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "chapterwatch version:", handler.Version)
		},
	})
}
