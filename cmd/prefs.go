package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"campussync/internal/bootstrap/logging"
	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Notification preference commands",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show notification preferences for the current user",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		principal, signedIn, err := deps.Identity.CurrentUser(ctx)
		if err != nil {
			return errs.Wrap(err, "resolve user")
		}
		if !signedIn {
			return domainfeed.ErrAuthenticationRequired
		}

		prefs := deps.Prefs.For(ctx, principal.ID)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "push_enabled:     %t\n", prefs.PushEnabled)
		fmt.Fprintf(out, "email_enabled:    %t\n", prefs.EmailEnabled)
		fmt.Fprintf(out, "emergency_alerts: %t\n", prefs.EmergencyAlerts)
		for _, reportType := range domainfeed.ReportTypes() {
			enabled := true
			if value, ok := prefs.TypePreferences[reportType]; ok {
				enabled = value
			}
			fmt.Fprintf(out, "type.%s: %t\n", reportType, enabled)
		}
		return nil
	}),
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update notification preferences for the current user",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		principal, signedIn, err := deps.Identity.CurrentUser(ctx)
		if err != nil {
			return errs.Wrap(err, "resolve user")
		}
		if !signedIn {
			return domainfeed.ErrAuthenticationRequired
		}

		prefs := deps.Prefs.For(ctx, principal.ID)
		if cmd.Flags().Changed("push") {
			prefs.PushEnabled, _ = cmd.Flags().GetBool("push")
		}
		if cmd.Flags().Changed("email") {
			prefs.EmailEnabled, _ = cmd.Flags().GetBool("email")
		}
		if cmd.Flags().Changed("emergency") {
			prefs.EmergencyAlerts, _ = cmd.Flags().GetBool("emergency")
		}
		enableTypes, _ := cmd.Flags().GetStringSlice("enable-type")
		disableTypes, _ := cmd.Flags().GetStringSlice("disable-type")
		if len(enableTypes) > 0 || len(disableTypes) > 0 {
			if prefs.TypePreferences == nil {
				prefs.TypePreferences = map[domainfeed.ReportType]bool{}
			}
			for _, raw := range enableTypes {
				reportType, err := domainfeed.ParseReportType(raw)
				if err != nil {
					return errs.Wrapf(err, "enable type %q", raw)
				}
				prefs.TypePreferences[reportType] = true
			}
			for _, raw := range disableTypes {
				reportType, err := domainfeed.ParseReportType(raw)
				if err != nil {
					return errs.Wrapf(err, "disable type %q", raw)
				}
				prefs.TypePreferences[reportType] = false
			}
		}

		if err := deps.Prefs.Save(ctx, principal.ID, prefs); err != nil {
			return errs.Wrap(err, "save preferences")
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "preferences saved"); err != nil {
			return errs.Wrap(err, "write prefs output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)

	prefsSetCmd.Flags().Bool("push", true, "Enable push notifications")
	prefsSetCmd.Flags().Bool("email", true, "Enable email notifications")
	prefsSetCmd.Flags().Bool("emergency", true, "Enable emergency alert notifications")
	prefsSetCmd.Flags().StringSlice("enable-type", nil, "Report types to enable notifications for")
	prefsSetCmd.Flags().StringSlice("disable-type", nil, "Report types to disable notifications for")
}
