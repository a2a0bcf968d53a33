// nova is the line-mode client for the orchestration server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var serverURL string

	root := &cobra.Command{
		Use:          "nova",
		Short:        "Talk to a nova orchestration server",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			c, err := newClient(serverURL)
			if err != nil {
				return err
			}
			defer c.close()
			return c.run()
		},
	}
	root.Flags().StringVarP(&serverURL, "server", "s", "ws://127.0.0.1:8990/ws", "Server websocket URL")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	})
	return root
}
