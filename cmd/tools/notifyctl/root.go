// cmd/tools/notifyctl/root.go
package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Inspect and manage notification templates and deliveries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&ctx.jsonOutput, "json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(newChannelsCommand(ctx))
	rootCmd.AddCommand(newRegistryCommand())
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newTemplatesCommand(ctx))
	rootCmd.AddCommand(newNotificationsCommand(ctx))

	return rootCmd
}
