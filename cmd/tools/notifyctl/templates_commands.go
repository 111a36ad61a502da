// cmd/tools/notifyctl/templates_commands.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notification-dispatch/internal/models"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "tpl"},
		Short:   "Manage notification templates",
	}
	cmd.AddCommand(
		newTemplatesListCommand(ctx),
		newTemplatesShowCommand(ctx),
		newTemplatesApplyCommand(ctx),
		newTemplatesValidateCommand(ctx),
		newTemplatesDeleteCommand(ctx),
		newTemplatesAttachCommand(ctx, true),
		newTemplatesAttachCommand(ctx, false),
		newTemplatesTestCommand(ctx),
	)
	return cmd
}

func newTemplatesListCommand(ctx *commandContext) *cobra.Command {
	var org int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := ctx.manager(cmd.Context())
			if err != nil {
				return err
			}
			tpls, err := mgr.List(cmd.Context(), org)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				out := make([]*models.NotificationTemplate, 0, len(tpls))
				for _, tpl := range tpls {
					out = append(out, mgr.Display(tpl))
				}
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(tpls))
			for _, tpl := range tpls {
				rows = append(rows, []string{
					tpl.ID.String(),
					strconv.FormatInt(tpl.OrganizationID, 10),
					tpl.Name,
					tpl.ChannelType,
					tpl.ModifiedAt.Format("2006-01-02 15:04"),
				})
			}
			printTable(cmd, []string{"ID", "Org", "Name", "Channel", "Modified"}, rows,
				[]columnAlignment{alignLeft, alignRight})
			return nil
		},
	}
	cmd.Flags().Int64Var(&org, "org", 0, "Only templates of this organization")
	return cmd
}

func newTemplatesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template with sensitive fields masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, _, err := ctx.manager(cmd.Context())
			if err != nil {
				return err
			}
			tpl, err := mgr.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, mgr.Display(tpl))
		},
	}
}

// newTemplatesApplyCommand creates the template in the file, or updates it when the
// file carries the id of an existing one.
func newTemplatesApplyCommand(ctx *commandContext) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update a template from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var tpl models.NotificationTemplate
			if err := json.Unmarshal(raw, &tpl); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			mgr, _, err := ctx.manager(cmd.Context())
			if err != nil {
				return err
			}

			if tpl.ID != uuid.Nil {
				if _, err := mgr.Get(cmd.Context(), tpl.ID); err == nil {
					updated, err := mgr.Update(cmd.Context(), &tpl)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Template %s updated\n", updated.ID)
					return nil
				}
			}
			if err := mgr.Create(cmd.Context(), &tpl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s created\n", tpl.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Template JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTemplatesValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id>",
		Short: "Check a stored template's configuration and message templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, _, err := ctx.manager(cmd.Context())
			if err != nil {
				return err
			}
			tpl, err := mgr.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := mgr.Validate(mgr.Display(tpl)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s is valid\n", id)
			return nil
		},
	}
}

func newTemplatesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template and its notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, _, err := ctx.manager(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s deleted\n", id)
			return nil
		},
	}
}

func newTemplatesAttachCommand(ctx *commandContext, attach bool) *cobra.Command {
	use, short := "attach", "Notify through a template when a job template's jobs reach a state"
	if !attach {
		use, short = "detach", "Stop notifying through a template for a job template"
	}

	var on string
	cmd := &cobra.Command{
		Use:   use + " <job-template-id> <template-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobTemplateID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || jobTemplateID <= 0 {
				return fmt.Errorf("invalid job template id %q", args[0])
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			kind, err := parseEventKind(on)
			if err != nil {
				return err
			}

			st, err := ctx.store(cmd.Context())
			if err != nil {
				return err
			}
			if attach {
				err = st.AttachTemplate(cmd.Context(), jobTemplateID, id, kind)
			} else {
				err = st.DetachTemplate(cmd.Context(), jobTemplateID, id, kind)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %s %sed for job template %d on %s\n", id, use, jobTemplateID, kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&on, "on", string(models.EventError), "Event kind: started, success or error")
	return cmd
}

func newTemplatesTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test <id>",
		Short: "Send a test message through a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			mgr, _, err := ctx.manager(cmd.Context())
			if err != nil {
				return err
			}
			tpl, err := mgr.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			subject := fmt.Sprintf("Notification Test %s", tpl.Name)
			sent, err := mgr.Send(cmd.Context(), tpl, subject, map[string]interface{}{
				"id":            0,
				"name":          tpl.Name,
				"friendly_name": "Notification Test",
			})
			if err != nil {
				return fmt.Errorf("test notification failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %d recipient(s)\n", sent)
			return nil
		},
	}
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func parseEventKind(s string) (models.EventKind, error) {
	for _, kind := range models.EventKinds {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("invalid event kind %q: want started, success or error", s)
}
