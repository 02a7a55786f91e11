package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskscheduler/core/internal/manage"
	"github.com/taskscheduler/core/internal/store"
)

func newCreateCmd() *cobra.Command {
	var timezone string
	var disabled bool
	var maxInstances int
	var overlap string

	cmd := &cobra.Command{
		Use:   "create <task-id> <cron>",
		Short: "Create a schedule for a template task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			templateTaskID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			return withManager(func(ctx context.Context, m *manage.Manager) error {
				scheduleID, err := m.Create(ctx, manage.CreateParams{
					TemplateTaskID: templateTaskID,
					CronExpression: args[1],
					Timezone:       timezone,
					MaxInstances:   maxInstances,
					OverlapPolicy:  store.OverlapPolicy(overlap),
					Enabled:        !disabled,
				})
				if err != nil {
					return err
				}

				sch, err := m.Get(ctx, scheduleID)
				if err != nil {
					return err
				}

				fmt.Printf("created schedule %s\n", scheduleID)
				printNextFirings(cmd, sch.CronExpression, sch.Timezone, 3)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone (defaults to the daemon's configured default)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the schedule disabled")
	cmd.Flags().IntVar(&maxInstances, "max-instances", 1, "upper bound on concurrent scheduled+running instances")
	cmd.Flags().StringVar(&overlap, "overlap", string(store.OverlapSkip), "overlap policy: skip|queue|replace")

	return cmd
}

func printNextFirings(cmd *cobra.Command, cronExpr, timezone string, n int) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return
	}
	expr, err := parseCronQuietly(cronExpr)
	if err != nil {
		return
	}
	runs, err := expr.Preview(time.Now().UTC(), loc, n)
	if err != nil {
		return
	}
	for i, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "next[%d]: %s\n", i, r.Format(time.RFC3339))
	}
}
