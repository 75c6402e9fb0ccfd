package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aouyang1/inkframe/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server with the event and dispatch schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openServices()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return api.NewWebServer(svc).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
