package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feed over HTTP and WebSocket",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logging.Info(ctx, "server starting", slog.String("addr", deps.App.Config.Server.Addr))
		if err := deps.Server.Run(ctx); err != nil {
			return errs.Wrap(err, "run server")
		}

		logging.Info(ctx, "server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
