package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/shiftsync/pkg/core/services"
)

// SubmitCmd creates the submit command, which reads a batch file (YAML or
// JSON) and submits it for processing.
func SubmitCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <batch_file>",
		Short: "Submit a batch of shifts from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read batch file: %w", err)
			}

			// YAML is a superset of JSON, so one decoder covers both
			var input services.BatchInput
			if err := yaml.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("failed to parse batch file: %w", err)
			}

			result, err := services.SubmitBatch(app.Ctx, app.Database, app.Logger, app.Cfg.MinBatchSize, input)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Batch submitted!\n\n")
			fmt.Printf("Request ID:   %s\n", result.Request.ID)
			fmt.Printf("Total Shifts: %d\n", result.Request.TotalShifts)
			fmt.Printf("Status:       %s\n\n", result.Request.Status)
			fmt.Printf("Track progress with: status %s\n\n", result.Request.ID)

			return nil
		},
	}
}
