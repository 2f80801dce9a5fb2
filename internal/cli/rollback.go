package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caredata/migrator/internal/config"
)

func newRollbackCmd() *cobra.Command {
	var configFile, service string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Remove everything this migration wrote into one service",
		RunE: func(c *cobra.Command, args []string) error {
			return runRollback(configFile, service)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "configs/plan.json", "Path to the migration plan file")
	cmd.Flags().StringVarP(&service, "service", "s", "", "Target service to roll back")
	cmd.MarkFlagRequired("service")

	return cmd
}

func runRollback(configFile, service string) error {
	plan, err := config.LoadPlan(configFile)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	plan, err = plan.FilterService(service)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	orch, cleanup, err := buildOrchestrator(plan, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := orch.RollbackService(context.Background(), service); err != nil {
		return err
	}
	fmt.Printf("Rollback of service %s complete.\n", service)
	return nil
}
