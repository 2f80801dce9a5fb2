package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caredata/migrator/internal/audit"
	"github.com/caredata/migrator/internal/config"
	"github.com/caredata/migrator/internal/migrate"
	"github.com/caredata/migrator/pkg/crypto"
	"github.com/caredata/migrator/pkg/database"
	"github.com/caredata/migrator/pkg/models"
)

type runOptions struct {
	ConfigFile string
	DryRun     bool
	Service    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the configured migration",
		RunE: func(c *cobra.Command, args []string) error {
			return runMigration(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "configs/plan.json", "Path to the migration plan file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Transform and validate without writing to targets")
	cmd.Flags().StringVarP(&opts.Service, "service", "s", "", "Migrate only this target service")

	return cmd
}

func runMigration(opts *runOptions) error {
	plan, err := config.LoadPlan(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	if opts.Service != "" {
		plan, err = plan.FilterService(opts.Service)
		if err != nil {
			return fmt.Errorf("%w: %v", errConfig, err)
		}
	}
	if opts.DryRun {
		plan.Migration.DryRun = true
	}

	orch, cleanup, err := buildOrchestrator(plan, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, runErr := orch.ExecuteMigration(ctx)
	printSummary(results)
	if runErr != nil {
		return runErr
	}
	for _, r := range results {
		if r.FailedRecords > 0 || r.Status == models.StatusFailed {
			return migrate.ErrTablesFailed
		}
	}
	fmt.Println("Migration finished successfully.")
	return nil
}

// buildOrchestrator opens every connection the plan needs and returns
// the orchestrator plus a cleanup releasing them. The PII encryptor is
// only required for runs that transform data; rollback skips it.
func buildOrchestrator(plan *config.Plan, needEncryptor bool) (*migrate.Orchestrator, func(), error) {
	sourceDB, err := database.ConnectSource(plan.Migration.SourceConn)
	if err != nil {
		return nil, nil, err
	}
	source := migrate.NewMSSQLSource(sourceDB)

	targets := make(map[string]migrate.TargetWriter, len(plan.Migration.Targets))
	closeAll := func() {
		source.Close()
		for _, t := range targets {
			t.Close()
		}
	}

	for service, conn := range plan.Migration.Targets {
		db, err := database.ConnectTarget(conn)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect target %s: %w", service, err)
		}
		targets[service] = migrate.NewPostgresTarget(db)
	}

	var sink audit.Logger = audit.NewMemorySink()
	if plan.Migration.AuditURI != "" {
		client, err := database.ConnectMongo(plan.Migration.AuditURI)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect audit store: %w", err)
		}
		sink = audit.NewMongoSink(client)
	}

	var encryptor migrate.Encryptor
	if needEncryptor {
		encryptor, err = loadEncryptor(plan)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%w: %v", errConfig, err)
		}
	}

	orch := migrate.NewOrchestrator(plan.Migration, plan.Tables, source, targets, sink, encryptor)
	return orch, func() { orch.Shutdown() }, nil
}

// loadEncryptor builds the PII encryptor from MIGRATION_ENCRYPTION_KEY
// (base64, 32 bytes). Required only when a table carries PII.
func loadEncryptor(plan *config.Plan) (migrate.Encryptor, error) {
	needsPII := false
	for _, tc := range plan.Tables {
		if tc.ContainsPII {
			needsPII = true
			break
		}
	}
	if !needsPII {
		return nil, nil
	}

	encoded := os.Getenv("MIGRATION_ENCRYPTION_KEY")
	if encoded == "" {
		return nil, fmt.Errorf("plan contains PII tables but MIGRATION_ENCRYPTION_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("MIGRATION_ENCRYPTION_KEY is not valid base64: %v", err)
	}
	return crypto.NewAESEncryptor(key)
}

func printSummary(results []models.MigrationResult) {
	for _, r := range results {
		fmt.Printf("%-20s %s -> %s: %s (total %d, migrated %d, failed %d)\n",
			r.Service, r.SourceTable, r.TargetTable, r.Status,
			r.TotalRecords, r.MigratedRecords, r.FailedRecords)
		for _, ve := range r.ValidationErrors {
			fmt.Printf("    %s\n", ve)
		}
	}
}
