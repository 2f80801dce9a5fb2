package migrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/caredata/migrator/internal/audit"
	"github.com/caredata/migrator/pkg/logger"
	"github.com/caredata/migrator/pkg/models"
)

// Orchestrator drives a full migration run: it sequences tables per
// service, runs the batch loop, tracks progress and owns rollback.
type Orchestrator struct {
	cfg       models.MigrationConfig
	tables    []models.TableMigrationConfig
	source    SourceReader
	targets   map[string]TargetWriter
	emitter   *audit.Emitter
	encryptor Encryptor
	runID     string

	mu       sync.Mutex
	progress models.MigrationProgress
	results  []models.MigrationResult
}

// NewOrchestrator wires a run together. The config is treated as
// read-only from here on. encryptor may be nil when no table carries
// PII.
func NewOrchestrator(
	cfg models.MigrationConfig,
	tables []models.TableMigrationConfig,
	source SourceReader,
	targets map[string]TargetWriter,
	sink audit.Logger,
	encryptor Encryptor,
) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ProvenanceMarker == "" {
		cfg.ProvenanceMarker = models.DefaultProvenanceMarker
	}
	return &Orchestrator{
		cfg:       cfg,
		tables:    tables,
		source:    source,
		targets:   targets,
		emitter:   audit.NewEmitter(sink),
		encryptor: encryptor,
		runID:     uuid.NewString(),
	}
}

// Emitter exposes the lifecycle event stream for subscribers.
func (o *Orchestrator) Emitter() *audit.Emitter { return o.emitter }

// RunID identifies this run in audit events.
func (o *Orchestrator) RunID() string { return o.runID }

func (o *Orchestrator) retryDelay() time.Duration {
	if o.cfg.RetryDelayMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(o.cfg.RetryDelayMs) * time.Millisecond
}

// serviceOrder returns service names in first-appearance order of the
// configured table list, each with its tables in declared order.
// Within a service tables run sequentially so parents land before
// children; independent services' stores allow parallel writers.
func (o *Orchestrator) serviceOrder() ([]string, map[string][]models.TableMigrationConfig) {
	var order []string
	byService := make(map[string][]models.TableMigrationConfig)
	for _, tc := range o.tables {
		if _, seen := byService[tc.Service]; !seen {
			order = append(order, tc.Service)
		}
		byService[tc.Service] = append(byService[tc.Service], tc)
	}
	return order, byService
}

// ExecuteMigration runs every configured service and table, returning
// one result per table. Connector errors abort the run after retry
// exhaustion; record-level failures only mark individual records.
func (o *Orchestrator) ExecuteMigration(ctx context.Context) ([]models.MigrationResult, error) {
	services, byService := o.serviceOrder()

	o.mu.Lock()
	o.progress = models.MigrationProgress{
		TotalPhases: len(services),
		TotalTables: len(o.tables),
		StartTime:   time.Now(),
		Status:      models.StatusInProgress,
	}
	o.results = nil
	o.mu.Unlock()

	started := audit.NewEvent(o.runID, audit.MigrationStarted)
	started.Details = map[string]interface{}{
		"services":  services,
		"tables":    len(o.tables),
		"batchSize": o.cfg.BatchSize,
		"dryRun":    o.cfg.DryRun,
	}
	if err := o.emitter.Emit(ctx, started); err != nil {
		logger.Warnf("audit emit failed: %v", err)
	}

	for _, svc := range services {
		if _, ok := o.targets[svc]; !ok {
			err := fmt.Errorf("%w: %s", ErrUnknownService, svc)
			o.failRun(ctx, err)
			return o.snapshotResults(), err
		}
	}

	limit := o.cfg.WorkerLimit
	if limit <= 0 {
		limit = len(o.targets)
	}
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, svc := range services {
		service := svc
		g.Go(func() error {
			for _, tc := range byService[service] {
				result, err := o.migrateTable(gctx, ctx, tc)
				o.appendResult(result)
				if err != nil {
					return err
				}
			}
			o.mu.Lock()
			o.progress.CurrentPhase++
			o.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		o.failRun(ctx, err)
		return o.snapshotResults(), err
	}

	o.mu.Lock()
	o.progress.Status = models.StatusCompleted
	o.mu.Unlock()

	done := audit.NewEvent(o.runID, audit.MigrationCompleted)
	done.Details = o.summaryDetails()
	if err := o.emitter.Emit(ctx, done); err != nil {
		logger.Warnf("audit emit failed: %v", err)
	}
	return o.snapshotResults(), nil
}

// migrateTable runs the batch loop for one table: count, page,
// transform, validate, bulk-write. ctx is the group context that stops
// the batch loop; caller is the run context, which alone decides
// whether a stop counts as a cancellation rather than a failure.
func (o *Orchestrator) migrateTable(ctx, caller context.Context, tc models.TableMigrationConfig) (models.MigrationResult, error) {
	result := models.MigrationResult{
		Service:     tc.Service,
		SourceTable: tc.SourceTable,
		TargetTable: tc.TargetTable,
		Status:      models.StatusInProgress,
		StartedAt:   time.Now(),
	}
	target := o.targets[tc.Service]

	var total int
	err := withRetry(ctx, "count "+tc.SourceTable, o.cfg.MaxRetries, o.retryDelay(), func() error {
		var err error
		total, err = o.source.Count(ctx, tc.SourceTable)
		return err
	})
	if err != nil {
		result.Status = models.StatusFailed
		result.CompletedAt = time.Now()
		return result, err
	}

	result.TotalRecords = total
	o.mu.Lock()
	o.progress.TotalRecords += total
	o.mu.Unlock()

	engine := NewEngine(&tc, o.cfg.ProvenanceMarker, o.encryptor)
	validator := NewValidator(tc.Validations)
	columns := engine.TargetColumns()

	migrated, failed := 0, 0
	var validationErrors []string
	batchStart := time.Now()

	for offset := 0; offset < total; offset += o.cfg.BatchSize {
		// Cancellation is only observed at batch boundaries; batches
		// already committed stay committed. The group context also
		// trips when a sibling service fails, so only the caller's own
		// cancellation earns the cancelled status.
		if ctx.Err() != nil {
			if caller.Err() != nil {
				o.mu.Lock()
				o.progress.Status = models.StatusCancelled
				o.mu.Unlock()
			}
			result.Status = models.StatusFailed
			result.MigratedRecords = migrated
			result.FailedRecords = failed
			result.ValidationErrors = validationErrors
			result.CompletedAt = time.Now()
			return result, fmt.Errorf("migration of %s cancelled: %w", tc.SourceTable, ctx.Err())
		}

		var rows []models.Row
		err := withRetry(ctx, "read "+tc.SourceTable, o.cfg.MaxRetries, o.retryDelay(), func() error {
			var err error
			rows, err = o.source.ReadBatch(ctx, tc.SourceTable, tc.SourceKey, o.cfg.BatchSize, offset)
			return err
		})
		if err != nil {
			result.Status = models.StatusFailed
			result.MigratedRecords = migrated
			result.FailedRecords = failed
			result.ValidationErrors = validationErrors
			result.CompletedAt = time.Now()
			return result, err
		}
		if len(rows) == 0 {
			break
		}

		valid := make([]models.Row, 0, len(rows))
		for _, row := range rows {
			transformed, err := engine.Transform(row)
			if err != nil {
				failed++
				validationErrors = append(validationErrors, err.Error())
				continue
			}
			if o.cfg.ValidationEnabled {
				if res := validator.Validate(transformed); !res.IsValid {
					failed++
					validationErrors = append(validationErrors, res.Errors...)
					continue
				}
			}
			valid = append(valid, transformed)
		}

		if o.cfg.DryRun {
			logger.Infof("[DRY RUN] would write %d records to %s.%s", len(valid), tc.Service, tc.TargetTable)
		} else if len(valid) > 0 {
			err := withRetry(ctx, "write "+tc.TargetTable, o.cfg.MaxRetries, o.retryDelay(), func() error {
				return target.WriteBatch(ctx, tc.TargetTable, columns, valid)
			})
			if err != nil {
				result.Status = models.StatusFailed
				result.MigratedRecords = migrated
				result.FailedRecords = failed
				result.ValidationErrors = validationErrors
				result.CompletedAt = time.Now()
				return result, err
			}
		}

		migrated += len(valid)
		o.mu.Lock()
		o.progress.MigratedRecords += len(valid)
		o.mu.Unlock()

		rate := float64(migrated+failed) / time.Since(batchStart).Seconds()
		logger.Infof("%s: batch done at offset %d, migrated %d, failed %d, %.2f rows/sec",
			tc.SourceTable, offset, migrated, failed, rate)
	}

	result.MigratedRecords = migrated
	result.FailedRecords = failed
	result.ValidationErrors = validationErrors
	// The source may have shrunk between count and the final page;
	// keep the counts identity intact.
	result.TotalRecords = migrated + failed
	result.CompletedAt = time.Now()
	switch {
	case failed == 0:
		result.Status = models.StatusCompleted
	case migrated == 0:
		result.Status = models.StatusFailed
	default:
		result.Status = models.StatusPartial
	}

	o.mu.Lock()
	o.progress.CompletedTables++
	o.mu.Unlock()

	event := audit.NewEvent(o.runID, audit.TableMigrationCompleted)
	event.Service = tc.Service
	event.Table = tc.SourceTable
	event.Details = map[string]interface{}{
		"targetTable":     tc.TargetTable,
		"status":          string(result.Status),
		"totalRecords":    result.TotalRecords,
		"migratedRecords": result.MigratedRecords,
		"failedRecords":   result.FailedRecords,
	}
	if err := o.emitter.Emit(ctx, event); err != nil {
		logger.Warnf("audit emit failed: %v", err)
	}
	return result, nil
}

// GetMigrationProgress returns a point-in-time snapshot of the run.
func (o *Orchestrator) GetMigrationProgress() models.MigrationProgress {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := o.progress
	snapshot.EstimatedCompletion = o.progress.EstimateCompletion(time.Now())
	return snapshot
}

// RollbackService transactionally removes every row this run's marker
// stamped into the service's tables. Safe to call repeatedly: once the
// marker rows are gone the delete is a no-op.
func (o *Orchestrator) RollbackService(ctx context.Context, serviceName string) error {
	target, ok := o.targets[serviceName]
	if !ok {
		return &RollbackError{Service: serviceName, Err: fmt.Errorf("%w: %s", ErrUnknownService, serviceName)}
	}

	var tables []string
	for _, tc := range o.tables {
		if tc.Service == serviceName {
			tables = append(tables, tc.TargetTable)
		}
	}

	var deleted int64
	err := withRetry(ctx, "rollback "+serviceName, o.cfg.MaxRetries, o.retryDelay(), func() error {
		var err error
		deleted, err = target.DeleteByMarker(ctx, tables, o.cfg.ProvenanceMarker)
		return err
	})
	if err != nil {
		return &RollbackError{Service: serviceName, Err: err}
	}

	event := audit.NewEvent(o.runID, audit.MigrationRollback)
	event.Service = serviceName
	event.Details = map[string]interface{}{
		"tables":         tables,
		"deletedRecords": deleted,
		"marker":         o.cfg.ProvenanceMarker,
	}
	if err := o.emitter.Emit(ctx, event); err != nil {
		logger.Warnf("audit emit failed: %v", err)
	}
	logger.Infof("rolled back %d records from service %s", deleted, serviceName)
	return nil
}

// Shutdown releases every connection. Safe to call even when no
// migration ran, and more than once.
func (o *Orchestrator) Shutdown() error {
	var first error
	if o.source != nil {
		if err := o.source.Close(); err != nil && first == nil {
			first = err
		}
		o.source = nil
	}
	for name, target := range o.targets {
		if err := target.Close(); err != nil && first == nil {
			first = err
		}
		delete(o.targets, name)
	}
	if o.emitter != nil {
		o.emitter.Close()
	}
	return first
}

func (o *Orchestrator) appendResult(result models.MigrationResult) {
	o.mu.Lock()
	o.results = append(o.results, result)
	o.mu.Unlock()
}

func (o *Orchestrator) snapshotResults() []models.MigrationResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.MigrationResult, len(o.results))
	copy(out, o.results)
	return out
}

func (o *Orchestrator) failRun(ctx context.Context, cause error) {
	o.mu.Lock()
	if o.progress.Status != models.StatusCancelled {
		o.progress.Status = models.StatusFailed
	}
	o.mu.Unlock()

	// The failure event must reach the sink even when the run died to a
	// cancelled context.
	ctx = context.WithoutCancel(ctx)
	event := audit.NewEvent(o.runID, audit.MigrationFailed)
	event.Details = map[string]interface{}{
		"error":     cause.Error(),
		"batchSize": o.cfg.BatchSize,
		"dryRun":    o.cfg.DryRun,
	}
	if err := o.emitter.Emit(ctx, event); err != nil {
		logger.Warnf("audit emit failed: %v", err)
	}
}

func (o *Orchestrator) summaryDetails() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	total, migrated, failedRecords := 0, 0, 0
	for _, r := range o.results {
		total += r.TotalRecords
		migrated += r.MigratedRecords
		failedRecords += r.FailedRecords
	}
	return map[string]interface{}{
		"tables":          len(o.results),
		"totalRecords":    total,
		"migratedRecords": migrated,
		"failedRecords":   failedRecords,
	}
}
