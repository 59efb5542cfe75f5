package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aretw0/inquiry/internal/cli"
	"github.com/aretw0/inquiry/internal/logging"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/spf13/cobra"
)

var responsesCmd = &cobra.Command{
	Use:   "responses <inquiry-id>",
	Short: "Print the stored responses of an inquiry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		services, err := cli.NewServices(cfg, logging.NewNop())
		if err != nil {
			return err
		}
		defer services.Close()

		lister, ok := services.Repo.(ports.ResponseLister)
		if !ok {
			return errors.New("storage does not support listing responses")
		}
		list, err := lister.ListResponses(context.Background(), args[0])
		if err != nil {
			return err
		}
		if list == nil {
			list = []domain.Submission{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	},
}

func init() {
	rootCmd.AddCommand(responsesCmd)
}
