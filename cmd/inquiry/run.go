package main

import (
	"context"
	"os"

	"github.com/aretw0/inquiry/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <graph.json>",
	Short: "Answer an inquiry in the terminal",
	Long: `Walks the inquiry as a chat on stdin/stdout. Bot messages are paced and
rendered as markdown when attached to a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool("debug")
		opts := cli.RunOptions{GraphPath: args[0], Debug: debug}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.Name, _ = cmd.Flags().GetString("name")
		opts.Email, _ = cmd.Flags().GetString("email")
		opts.Plain, _ = cmd.Flags().GetBool("plain")
		opts.Record, _ = cmd.Flags().GetBool("record")
		if narrate, _ := cmd.Flags().GetBool("narrate"); narrate {
			cfg.Sessions.Narration = true
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Run(sigCtx, cfg, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("session", "", "Session id (generated when empty)")
	runCmd.Flags().String("name", "", "Respondent name")
	runCmd.Flags().String("email", "", "Respondent email")
	runCmd.Flags().Bool("plain", false, "Disable banner, markdown and typing delays")
	runCmd.Flags().Bool("record", false, "Store the finished response in the configured storage")
	runCmd.Flags().Bool("narrate", false, "Log narrated bot text")
}
