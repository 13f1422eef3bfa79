package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alfredjeanlab/statusd/internal/model"
	"github.com/alfredjeanlab/statusd/internal/socket"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:     "send <title> <status>",
	Short:   "Report a status through the daemon socket",
	Long:    `Report a status through the daemon socket. A status of "done" clears the title.`,
	GroupID: "client",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		path := socket.Path(cfg.SocketName)
		msg := model.SocketMessage{Title: args[0], Status: args[1]}
		if err := socket.Send(ctx, path, msg); err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(os.Stdout, msg)
		}
		if msg.IsDone() {
			fmt.Printf("Cleared %s\n", msg.Title)
		} else {
			fmt.Printf("Sent %s: %s\n", msg.Title, msg.Status)
		}
		return nil
	},
}
