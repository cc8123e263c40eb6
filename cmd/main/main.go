package main

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"multichat/internal/pkg/app"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	var (
		configPath string
		envFile    string
	)

	rootCmd := &cobra.Command{
		Use:   "multichat",
		Short: "Aggregate one channel's Twitch, YouTube, Owncast and Kick chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, app.Options{ConfigPath: configPath, EnvFiles: []string{envFile}})
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.json", "Path to the JSON config file")
	rootCmd.Flags().StringVarP(&envFile, "env", "e", ".env", "Path to a .env file overriding config values")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
