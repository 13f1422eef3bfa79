package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/statusd/internal/client"
	"github.com/alfredjeanlab/statusd/internal/model"
	"github.com/alfredjeanlab/statusd/internal/ui"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the current status snapshot",
	GroupID: "client",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewHTTPClient(httpURL, cfg.AuthToken)
		defer c.Close()

		rows, err := c.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching status: %w", err)
		}
		usage, err := c.Usage(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetching usage: %w", err)
		}

		if jsonOutput {
			return printJSON(os.Stdout, struct {
				Status []model.Message `json:"status"`
				Usage  *model.Usage    `json:"usage"`
			}{rows, usage})
		}

		ui.WriteStatus(os.Stdout, rows)
		fmt.Println()
		ui.WriteUsage(os.Stdout, usage)
		return nil
	},
}
