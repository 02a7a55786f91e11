package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskscheduler/core/internal/manage"
)

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <schedule-id>",
		Short: "Delete a schedule and cascade its instances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule id %q: %w", args[0], err)
			}

			if !force && !confirmDelete(cmd, scheduleID.String()) {
				fmt.Println("aborted")
				return nil
			}

			return withManager(func(ctx context.Context, m *manage.Manager) error {
				if err := m.Delete(ctx, scheduleID); err != nil {
					return err
				}
				fmt.Printf("schedule %s deleted\n", scheduleID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func confirmDelete(cmd *cobra.Command, scheduleID string) bool {
	fmt.Printf("delete schedule %s? [y/N] ", scheduleID)
	reader := bufio.NewReader(cmd.InOrStdin())
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
