package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskscheduler/core/internal/cron"
	"github.com/taskscheduler/core/internal/manage"
)

func parseCronQuietly(expr string) (*cron.Expression, error) {
	return cron.Parse(expr)
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <cron>",
		Short: "Validate a cron expression without touching the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate is pure, so it needs no store/config wiring.
			m := manage.New(nil, "UTC", nil)
			result := m.Validate(args[0])

			if !result.Valid {
				fmt.Printf("invalid: %s\n", result.Errors[0])
				return errValidationFailure
			}

			fmt.Println("valid")
			for i, r := range result.NextRuns {
				if i >= 5 {
					break
				}
				fmt.Printf("next[%d]: %s\n", i, r.Format(time.RFC3339))
			}
			return nil
		},
	}
}
