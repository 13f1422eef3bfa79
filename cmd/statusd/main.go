// Command statusd aggregates process, hardware, clock and socket-reported
// status into one continuously refreshed view.
package main

import (
	"os"

	"github.com/alfredjeanlab/statusd/internal/config"
	"github.com/alfredjeanlab/statusd/internal/ui"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
	noColor    bool
	httpURL    string
	grpcAddr   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "statusd <command>",
	Short:         "Status aggregator daemon and client",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Configure(noColor || jsonOutput)

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		if httpURL == "" {
			httpURL = cfg.HTTPAddr
		}
		if grpcAddr == "" {
			grpcAddr = cfg.GRPCAddr
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", "", "HTTP API address (default from config)")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC address (default from config)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "daemon", Title: "Daemon:"},
		&cobra.Group{ID: "client", Title: "Client:"},
	)
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
