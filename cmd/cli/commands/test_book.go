package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/shiftsync/pkg/core/services"
)

// TestBookCmd creates the testBook command, which submits the built-in
// sample batch against the live upstream.
func TestBookCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "testBook",
		Short: "Submit the built-in sample batch of ten shifts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				return fmt.Errorf("pass --confirm to execute test booking")
			}

			result, err := services.SubmitBatch(app.Ctx, app.Database, app.Logger, app.Cfg.MinBatchSize, services.SampleBatch())
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Test batch submitted!\n\n")
			fmt.Printf("Request ID:   %s\n", result.Request.ID)
			fmt.Printf("Total Shifts: %d\n\n", result.Request.TotalShifts)

			return nil
		},
	}

	cmd.Flags().Bool("confirm", false, "Confirm submitting the sample batch")

	return cmd
}
