package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"campussync/internal/bootstrap"
	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
	"campussync/internal/ports"
	"campussync/internal/server"
	feedsvc "campussync/internal/usecase/feed"
	prefssvc "campussync/internal/usecase/prefs"
	livesync "campussync/internal/usecase/sync"
)

type appDeps struct {
	fx.In

	App      *bootstrap.App
	Feed     *feedsvc.Service
	Syncer   *livesync.Synchronizer
	Notifier *livesync.Notifier
	Prefs    *prefssvc.Service
	Identity ports.Identity
	Server   *server.Server
}

func withApp(run func(cmd *cobra.Command, deps appDeps) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var deps appDeps
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&deps),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, deps); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
