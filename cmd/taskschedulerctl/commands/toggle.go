package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskscheduler/core/internal/manage"
)

func newEnableCmd() *cobra.Command  { return newToggleCmd("enable", true) }
func newDisableCmd() *cobra.Command { return newToggleCmd("disable", false) }

func newToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <schedule-id>",
		Short: fmt.Sprintf("%s a schedule", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule id %q: %w", args[0], err)
			}
			return withManager(func(ctx context.Context, m *manage.Manager) error {
				if err := m.Toggle(ctx, scheduleID, enabled); err != nil {
					return err
				}
				fmt.Printf("schedule %s %sd\n", scheduleID, use)
				return nil
			})
		},
	}
}
