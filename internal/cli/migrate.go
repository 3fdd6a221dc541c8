package cli

import (
	"github.com/spf13/cobra"
)

type MigrateOptions struct {
	PlanFile    string
	BatchSize   int
	DryRun      bool
	StopOnError bool
}

func NewMigrateCmd() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the migration plan against the configured databases",
		RunE: func(c *cobra.Command, args []string) error {
			return runMigration(c.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PlanFile, "plan", "p", "configs/plan.json", "Path to the migration plan file")
	cmd.Flags().IntVarP(&opts.BatchSize, "batch-size", "b", 0, "Override the source page size for every tube")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Transform and report without writing to the target")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "Halt each tube at its first failed record and the set at the first failed tube")

	return cmd
}
