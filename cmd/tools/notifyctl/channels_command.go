// cmd/tools/notifyctl/channels_command.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notification-dispatch/internal/notifications/catalog"
	"notification-dispatch/pkg/registry"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the supported notification channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Build(catalog.New(catalog.Dependencies{}), time.Now())
			if ctx.jsonOutput {
				return writeJSON(cmd, reg.Channels)
			}

			rows := make([][]string, 0, len(reg.Channels))
			for _, ch := range reg.Channels {
				var required []string
				for _, p := range ch.Parameters {
					if p.Required && p.Default == nil {
						required = append(required, p.Name)
					}
				}
				rows = append(rows, []string{
					ch.Type,
					ch.Label,
					ch.RecipientParameter,
					strings.Join(required, ", "),
					strings.Join(ch.SensitiveFields, ", "),
				})
			}
			printTable(cmd, []string{"Type", "Label", "Recipients", "Required", "Encrypted"}, rows, nil)
			return nil
		},
	}
}

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Work with the published channel registry",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the channel registry JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Build(catalog.New(catalog.Dependencies{}), time.Now())
			if out == "" {
				return writeJSON(cmd, reg)
			}
			if err := registry.SaveRegistry(out, reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry written to %s (%d channels)\n", out, len(reg.Channels))
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")

	var path string
	check := &cobra.Command{
		Use:   "check",
		Short: "Compare a registry file with the built-in channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			published, err := registry.LoadRegistry(path)
			if err != nil {
				return err
			}
			current := registry.Build(catalog.New(catalog.Dependencies{}), time.Now())

			var drift []string
			for _, ch := range current.Channels {
				if _, ok := published.Find(ch.Type); !ok {
					drift = append(drift, "missing channel "+ch.Type)
				}
			}
			for _, ch := range published.Channels {
				if _, ok := current.Find(ch.Type); !ok {
					drift = append(drift, "unknown channel "+ch.Type)
				}
			}
			if len(drift) > 0 {
				return fmt.Errorf("registry %s is stale: %s", path, strings.Join(drift, "; "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Registry is up to date")
			return nil
		},
	}
	check.Flags().StringVarP(&path, "file", "f", "channels.json", "Registry file")

	cmd.AddCommand(export, check)
	return cmd
}
