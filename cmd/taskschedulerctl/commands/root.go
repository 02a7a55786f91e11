package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the taskschedulerctl root command with all verbs
// registered (spec.md §6).
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskschedulerctl",
		Short: "Manage cron-based task schedules",
		Long: `taskschedulerctl is the management-API CLI for the task scheduling core.

Examples:
  taskschedulerctl create 3f29...  "0 * * * *" --timezone=UTC
  taskschedulerctl list --all
  taskschedulerctl enable 3f29...
  taskschedulerctl validate "*/5 * * * *"
  taskschedulerctl metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file layered over environment defaults")

	root.AddCommand(
		newCreateCmd(),
		newListCmd(),
		newEnableCmd(),
		newDisableCmd(),
		newDeleteCmd(),
		newValidateCmd(),
		newMetricsCmd(),
	)

	return root
}
