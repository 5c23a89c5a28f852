package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve cleaning sessions over HTTP",
	Long: `serve starts the HTTP API. Each uploaded dataset gets its own session;
actions are posted with the session's current token and rejected when stale.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = c.ServerAddr
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := server.NewRegistry(c.Pipeline(), logger)
		srv := server.New(reg, server.Config{PresetsDir: c.PresetsDir, Ingest: c.Ingest()}, logger)
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)
		return srv.Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config server_addr)")
}
