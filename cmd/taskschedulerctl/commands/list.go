package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taskscheduler/core/internal/manage"
	"github.com/taskscheduler/core/internal/store"
)

func newListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules sorted by next_run_at ascending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *manage.Manager) error {
				schedules, err := m.List(ctx, store.ScheduleFilter{OnlyEnabled: !all})
				if err != nil {
					return err
				}

				sort.Slice(schedules, func(i, j int) bool {
					return schedules[i].NextRunAt.Before(schedules[j].NextRunAt)
				})

				for _, sch := range schedules {
					fmt.Printf("%s\t%s\t%s\tenabled=%t\tnext_run_at=%s\n",
						sch.ID, sch.CronExpression, sch.OverlapPolicy, sch.Enabled, sch.NextRunAt.Format("2006-01-02T15:04:05Z07:00"))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include disabled schedules")
	return cmd
}
