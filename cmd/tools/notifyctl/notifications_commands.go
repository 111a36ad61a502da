// cmd/tools/notifyctl/notifications_commands.go
package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notification-dispatch/internal/models"
	"notification-dispatch/internal/store"
)

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notification", "n"},
		Short:   "Inspect delivery records",
	}

	var (
		templateID string
		status     string
		limit      int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.NotificationFilter{Limit: limit}
			if templateID != "" {
				id, err := parseID(templateID)
				if err != nil {
					return err
				}
				filter.TemplateID = id
			}
			if status != "" {
				switch s := models.Status(status); s {
				case models.StatusPending, models.StatusSuccessful, models.StatusFailed:
					filter.Status = s
				default:
					return fmt.Errorf("invalid status %q: want pending, successful or failed", status)
				}
			}

			st, err := ctx.store(cmd.Context())
			if err != nil {
				return err
			}
			items, err := st.ListNotifications(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, items)
			}

			rows := make([][]string, 0, len(items))
			for _, n := range items {
				rows = append(rows, []string{
					n.ID.String(),
					n.ChannelType,
					string(n.Status),
					strconv.Itoa(n.SentCount),
					strconv.FormatInt(n.SourceEventID, 10),
					truncate(n.Subject, 48),
					truncate(n.Error, 48),
				})
			}
			printTable(cmd, []string{"ID", "Channel", "Status", "Sent", "Job", "Subject", "Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight})
			return nil
		},
	}
	list.Flags().StringVar(&templateID, "template", "", "Only notifications of this template")
	list.Flags().StringVar(&status, "status", "", "Only notifications in this status")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum rows")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			st, err := ctx.store(cmd.Context())
			if err != nil {
				return err
			}
			n, err := st.GetNotification(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, n)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.store(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := st.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
