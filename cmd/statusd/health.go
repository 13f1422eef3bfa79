package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alfredjeanlab/statusd/internal/client"
	"github.com/alfredjeanlab/statusd/internal/server"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the daemon over gRPC",
	GroupID: "client",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.NewHealthClient(grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		status, err := c.Check(ctx, server.ServiceName)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(os.Stdout, map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s\n", status)
		}

		if status != "SERVING" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
