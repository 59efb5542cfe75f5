package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/spf13/cobra"
)

var errInvalidGraph = errors.New("graph is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate <graph.json>",
	Short: "Check a graph for structural errors",
	Long:  `Checks the document shape, then reports structural errors and warnings.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := inquiry.LoadGraph(args[0])
		if err != nil {
			return err
		}
		report := validator.Validate(g)
		out := cmd.OutOrStdout()
		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		for _, e := range report.Errors {
			fmt.Fprintf(out, "error: %s\n", e)
		}
		if !report.OK() {
			return fmt.Errorf("%w: %d error(s)", errInvalidGraph, len(report.Errors))
		}
		fmt.Fprintln(out, "Graph is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
