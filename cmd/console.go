package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
	feedconsole "campussync/internal/usecase/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the live feed console",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 2 * time.Second
		}

		model := feedconsole.NewFeedModel(ctx, deps.Feed, deps.Notifier, deps.Identity, feedconsole.Options{
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run feed console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Duration("refresh-interval", 2*time.Second, "Auto refresh interval")
}
