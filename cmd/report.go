package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"campussync/internal/bootstrap/logging"
	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Incident report commands",
}

var reportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an incident report",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		reportType, _ := cmd.Flags().GetString("type")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		latitude, _ := cmd.Flags().GetFloat64("lat")
		longitude, _ := cmd.Flags().GetFloat64("lng")
		address, _ := cmd.Flags().GetString("address")
		photoPath, _ := cmd.Flags().GetString("photo")

		report, err := deps.Feed.CreateReport(ctx, domainfeed.NewReportInput{
			Type:        domainfeed.ReportType(reportType),
			Title:       title,
			Description: description,
			Location: domainfeed.Location{
				Latitude:  latitude,
				Longitude: longitude,
				Address:   address,
			},
		})
		if err != nil {
			return errs.Wrap(err, "create report")
		}

		if strings.TrimSpace(photoPath) != "" {
			url, err := deps.Feed.AttachPhoto(ctx, report.ID, photoPath)
			if err != nil {
				return errs.Wrap(err, "attach photo")
			}
			report.PhotoURL = url
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "report created: %s\n", report.ID); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := deps.Syncer.WaitReady(ctx); err != nil {
			return errs.Wrap(err, "wait for snapshot")
		}

		followedOnly, _ := cmd.Flags().GetBool("followed")
		reports := deps.Feed.Reports()
		if followedOnly {
			principal, signedIn, err := deps.Identity.CurrentUser(ctx)
			if err != nil {
				return errs.Wrap(err, "resolve user")
			}
			if !signedIn {
				return domainfeed.ErrAuthenticationRequired
			}
			reports = deps.Feed.GetFollowed(principal.ID)
		}

		for _, report := range reports {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s [%s/%s] %s by=%s followers=%d\n",
				report.ID, report.Type, report.Status, report.Title, report.CreatedByName, len(report.FollowedBy)); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one report",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := deps.Syncer.WaitReady(ctx); err != nil {
			return errs.Wrap(err, "wait for snapshot")
		}

		report, found := deps.Feed.GetByID(cmd.Flags().Arg(0))
		if !found {
			return domainfeed.ErrReportNotFound
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ID:          %s\n", report.ID)
		fmt.Fprintf(out, "Type:        %s\n", report.Type)
		fmt.Fprintf(out, "Status:      %s\n", report.Status)
		fmt.Fprintf(out, "Title:       %s\n", report.Title)
		fmt.Fprintf(out, "Description: %s\n", report.Description)
		fmt.Fprintf(out, "Location:    %.6f,%.6f %s\n", report.Location.Latitude, report.Location.Longitude, report.Location.Address)
		fmt.Fprintf(out, "CreatedBy:   %s (%s)\n", report.CreatedByName, report.CreatedBy)
		fmt.Fprintf(out, "CreatedAt:   %s\n", report.CreatedAt)
		fmt.Fprintf(out, "UpdatedAt:   %s\n", report.UpdatedAt)
		fmt.Fprintf(out, "PhotoURL:    %s\n", report.PhotoURL)
		fmt.Fprintf(out, "FollowedBy:  %s\n", strings.Join(report.FollowedBy, ","))
		if local, ok := deps.Feed.LocalPhoto(ctx, report.ID); ok {
			fmt.Fprintf(out, "LocalPhoto:  %s\n", local)
		}
		return nil
	}),
}

var reportStatusCmd = &cobra.Command{
	Use:   "status <id> <open|in_review|resolved>",
	Short: "Update a report status",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id := cmd.Flags().Arg(0)
		status := cmd.Flags().Arg(1)
		if err := deps.Feed.UpdateStatus(ctx, id, domainfeed.ReportStatus(status)); err != nil {
			return errs.Wrap(err, "update status")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "report %s status set to %s\n", id, status); err != nil {
			return errs.Wrap(err, "write status output")
		}
		return nil
	}),
}

var reportFollowCmd = &cobra.Command{
	Use:   "follow <id>",
	Short: "Toggle following a report",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id := cmd.Flags().Arg(0)
		following, err := deps.Feed.ToggleFollow(ctx, id)
		if err != nil {
			return errs.Wrap(err, "toggle follow")
		}

		state := "unfollowed"
		if following {
			state = "following"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "report %s: %s\n", id, state); err != nil {
			return errs.Wrap(err, "write follow output")
		}
		return nil
	}),
}

var reportDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a report",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id := cmd.Flags().Arg(0)
		if err := deps.Feed.DeleteReport(ctx, id); err != nil {
			return errs.Wrap(err, "delete report")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "report %s deleted\n", id); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportCreateCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportStatusCmd)
	reportCmd.AddCommand(reportFollowCmd)
	reportCmd.AddCommand(reportDeleteCmd)

	reportCreateCmd.Flags().String("type", "", "Report type (health|security|environmental|lost_found|technical)")
	reportCreateCmd.Flags().String("title", "", "Report title")
	reportCreateCmd.Flags().String("description", "", "Report description")
	reportCreateCmd.Flags().Float64("lat", 0, "Latitude")
	reportCreateCmd.Flags().Float64("lng", 0, "Longitude")
	reportCreateCmd.Flags().String("address", "", "Human readable address")
	reportCreateCmd.Flags().String("photo", "", "Optional local photo path to attach")
	_ = reportCreateCmd.MarkFlagRequired("type")
	_ = reportCreateCmd.MarkFlagRequired("title")

	reportListCmd.Flags().Bool("followed", false, "Only reports followed by the current user")
}
