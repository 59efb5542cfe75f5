package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/inquiry"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of inquiry",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "inquiry version %s\n", strings.TrimSpace(inquiry.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
