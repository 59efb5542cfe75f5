package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/presentation/graph"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <graph.json>",
	Short: "Export the inquiry as a Mermaid flowchart",
	Long: `Outputs a Mermaid diagram (graph TD) of the inquiry. With --state, the
visited and current nodes of a saved session state are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := inquiry.LoadGraph(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if path, _ := cmd.Flags().GetString("state"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var state domain.TraversalState
			if err := json.Unmarshal(data, &state); err != nil {
				return fmt.Errorf("decode state: %w", err)
			}
			overlay = graph.OverlayFor(&state)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.Mermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("state", "", "Session state JSON to overlay")
}
