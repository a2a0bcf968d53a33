// nova-server runs the intent orchestration server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nova/internal/app"
	"nova/internal/config"
)

var version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "nova-server",
		Short:        "Voice-assistant orchestration server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			instance, err := app.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return instance.Run(ctx)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: nova.yaml in ~/.nova or .)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	})
	return root
}
