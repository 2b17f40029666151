package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/shiftsync/pkg/db"
)

// ListRequestsCmd creates the listRequests command
func ListRequestsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listRequests",
		Short: "List recent shift requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			requests, err := app.Database.ListRequests(app.Ctx, db.RequestStatus(status), limit)
			if err != nil {
				return fmt.Errorf("failed to list requests: %w", err)
			}

			if len(requests) == 0 {
				fmt.Println("No requests found.")
				return nil
			}

			fmt.Printf("\nFound %d requests:\n\n", len(requests))
			for _, req := range requests {
				fmt.Printf("  %s  %-10s  %3d shifts (%d ok, %d skipped, %d failed)  %s\n",
					req.ID,
					req.Status,
					req.TotalShifts,
					req.SuccessfulShifts,
					req.SkippedShifts,
					req.FailedShifts,
					req.CreatedAt.Format("2006-01-02 15:04"))
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("status", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().Int("limit", 20, "Maximum number of requests to show")

	return cmd
}
