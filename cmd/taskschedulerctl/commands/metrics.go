package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskscheduler/core/internal/metrics"
)

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print a read-only metrics snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMetrics(func(ctx context.Context, agg *metrics.Aggregator) error {
				snap, err := agg.Snapshot(ctx, time.Now().UTC())
				if err != nil {
					return err
				}

				fmt.Printf("total_schedules: %d\n", snap.TotalSchedules)
				fmt.Printf("active_schedules: %d\n", snap.ActiveSchedules)
				fmt.Printf("live_instances: %d\n", snap.LiveInstancesOverall)
				for status, count := range snap.InstancesToday {
					fmt.Printf("instances_today[%s]: %d\n", status, count)
				}
				for _, f := range snap.UpcomingFirings {
					fmt.Printf("upcoming: %s %s at %s\n", f.ScheduleID, f.CronExpression, f.NextRunAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}
