package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := app.Postgres.RunMigrations(app.Ctx)
			if err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}

			if applied == 0 {
				fmt.Println("✓ Database already up to date")
			} else {
				fmt.Printf("✓ Applied %d migration(s)\n", applied)
			}
			return nil
		},
	}
}
