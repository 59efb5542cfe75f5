package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/cli"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/validator"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <graph.json>",
	Short: "Validate a graph and store it in the configured storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		g, err := inquiry.LoadGraph(args[0])
		if err != nil {
			return err
		}
		if err := validator.Validate(g).Err(); err != nil {
			return err
		}

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		services, err := cli.NewServices(cfg, logging.NewNop())
		if err != nil {
			return err
		}
		defer services.Close()

		if err := services.Repo.SaveGraph(context.Background(), id, g); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published '%s' to %s storage.\n", id, cfg.Storage.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().String("id", "", "Inquiry id (defaults to the file name)")
}
