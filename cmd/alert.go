package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Emergency alert commands",
}

var alertCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish an emergency alert (admin only)",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		title, _ := cmd.Flags().GetString("title")
		message, _ := cmd.Flags().GetString("message")

		alert, err := deps.Feed.CreateEmergencyAlert(ctx, title, message)
		if err != nil {
			return errs.Wrap(err, "create alert")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "alert published: %s\n", alert.ID); err != nil {
			return errs.Wrap(err, "write alert output")
		}
		return nil
	}),
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active emergency alerts",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := deps.Syncer.WaitReady(ctx); err != nil {
			return errs.Wrap(err, "wait for snapshot")
		}

		for _, alert := range deps.Feed.Alerts() {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (by %s at %s)\n",
				alert.ID, alert.Title, alert.Message, alert.CreatedBy, alert.CreatedAt); err != nil {
				return errs.Wrap(err, "write alert list output")
			}
		}
		return nil
	}),
}

var alertDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Retract an emergency alert (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id := cmd.Flags().Arg(0)
		if err := deps.Feed.DeleteEmergencyAlert(ctx, id); err != nil {
			return errs.Wrap(err, "delete alert")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "alert %s retracted\n", id); err != nil {
			return errs.Wrap(err, "write alert delete output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertCreateCmd)
	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertDeleteCmd)

	alertCreateCmd.Flags().String("title", "", "Alert title")
	alertCreateCmd.Flags().String("message", "", "Alert message")
	_ = alertCreateCmd.MarkFlagRequired("title")
	_ = alertCreateCmd.MarkFlagRequired("message")
}
