package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "supertube",
		Short: "supertube - rule-based record migration between data models",
		Long: `supertube migrates rows from a legacy database into a new schema,
applying per-field mapping rules and defaults, and reports every record's
outcome. Migrations are defined in a JSON plan file and run in order as one
set with a shared halt policy.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewMigrateCmd())

	return rootCmd
}
