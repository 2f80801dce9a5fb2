// Package cli wires the migration subsystem into a cobra command tree.
package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// errConfig marks configuration problems so main can map them to exit
// code 2 instead of the generic failure code 1.
var errConfig = errors.New("configuration error")

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Batched schema migration from the monolith store to per-service stores",
		Long: `migrate executes approved field-mapping plans as batched, validated,
auditable transfers from the monolithic source store into per-domain
target stores, and generates mapping recommendations from sampled data.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(newRunCmd(), newRollbackCmd(), newStatusCmd(), newRecommendCmd())
	return rootCmd
}

// Execute runs the CLI and returns the process exit code: 0 on full
// success, 1 when a run fails or any table ends with failed records,
// 2 on configuration errors.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		if errors.Is(err, errConfig) {
			return 2
		}
		return 1
	}
	return 0
}
