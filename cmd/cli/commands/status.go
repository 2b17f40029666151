package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/shiftsync/pkg/core/services"
	"github.com/jakechorley/shiftsync/pkg/db"
)

// StatusCmd creates the status command
func StatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <request_id>",
		Short: "Show the status and per-shift breakdown of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.RequestStatus(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}

			req := result.Request
			fmt.Printf("\nRequest %s\n\n", req.ID)
			fmt.Printf("Status:     %s\n", req.Status)
			fmt.Printf("Created:    %s\n", req.CreatedAt.Format("2006-01-02 15:04:05"))
			if req.CompletedAt != nil {
				fmt.Printf("Completed:  %s\n", req.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("\nShifts: %d total, %d processed (%d successful, %d skipped, %d failed)\n\n",
				result.Summary.Total,
				result.Summary.Processed,
				result.Summary.Successful,
				result.Summary.Skipped,
				result.Summary.Failed)

			for _, s := range result.Shifts {
				marker := statusMarker(s.Status)
				fmt.Printf("  %s %s %s  %s → %s  [%s, %d attempts]",
					marker,
					s.CompanyID,
					s.UserID,
					s.StartTime.Format("2006-01-02 15:04"),
					s.EndTime.Format("15:04"),
					s.Status,
					s.Attempts)
				if s.ErrorMessage != nil {
					fmt.Printf("  %s", *s.ErrorMessage)
				}
				fmt.Println()
			}
			fmt.Println()

			return nil
		},
	}
}

func statusMarker(status db.ShiftStatus) string {
	switch status {
	case db.ShiftCompleted:
		return "✓"
	case db.ShiftSkipped:
		return "·"
	case db.ShiftFailed:
		return "✗"
	default:
		return "…"
	}
}
