package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredata/migrator/internal/audit"
	"github.com/caredata/migrator/pkg/models"
)

type fakeSource struct {
	mu            sync.Mutex
	tables        map[string][]models.Row
	countFailures int
	readFailures  int
	closed        bool
}

func (f *fakeSource) Count(_ context.Context, table string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countFailures > 0 {
		f.countFailures--
		return 0, errors.New("connection reset")
	}
	return len(f.tables[table]), nil
}

func (f *fakeSource) ReadBatch(_ context.Context, table, _ string, limit, offset int) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readFailures > 0 {
		f.readFailures--
		return nil, errors.New("read timeout")
	}
	rows := f.tables[table]
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeTarget struct {
	mu            sync.Mutex
	writes        int
	rows          map[string][]models.Row
	writeFailures int
	closed        bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{rows: make(map[string][]models.Row)}
}

func (f *fakeTarget) WriteBatch(_ context.Context, table string, _ []string, rows []models.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeFailures > 0 {
		f.writeFailures--
		return errors.New("write refused")
	}
	f.writes++
	f.rows[table] = append(f.rows[table], rows...)
	return nil
}

func (f *fakeTarget) DeleteByMarker(_ context.Context, tables []string, marker string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for _, table := range tables {
		var kept []models.Row
		for _, row := range f.rows[table] {
			if row["migration_source"].Text() == marker {
				deleted++
				continue
			}
			kept = append(kept, row)
		}
		f.rows[table] = kept
	}
	return deleted, nil
}

func (f *fakeTarget) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func sourceRows(n int) []models.Row {
	rows := make([]models.Row, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, models.Row{
			"id":         models.NumberValue(float64(i)),
			"first_name": models.StringValue(fmt.Sprintf("  Patient%d  ", i)),
		})
	}
	return rows
}

func patientsTable() models.TableMigrationConfig {
	return models.TableMigrationConfig{
		Service:     "patients",
		SourceTable: "users",
		TargetTable: "patients",
		SourceKey:   "id",
		Transformations: []models.TransformationRule{
			{SourceColumn: "id", TargetColumn: "patient_id", Required: true},
			{SourceColumn: "first_name", TargetColumn: "first_name", Transform: "trim", Required: true},
		},
		Validations: []models.ValidationRule{
			{Column: "first_name", Kind: models.ValidationRequired},
		},
	}
}

func testConfig() models.MigrationConfig {
	return models.MigrationConfig{
		SourceConn:        "src",
		Targets:           map[string]string{"patients": "tgt"},
		BatchSize:         100,
		MaxRetries:        3,
		RetryDelayMs:      1,
		ValidationEnabled: true,
	}
}

func TestExecuteMigrationPartialResult(t *testing.T) {
	rows := sourceRows(10)
	delete(rows[4], "first_name") // one record missing a required field

	source := &fakeSource{tables: map[string][]models.Row{"users": rows}}
	target := newFakeTarget()
	sink := audit.NewMemorySink()

	orch := NewOrchestrator(testConfig(), []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, sink, nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, models.StatusPartial, r.Status)
	assert.Equal(t, 10, r.TotalRecords)
	assert.Equal(t, 9, r.MigratedRecords)
	assert.Equal(t, 1, r.FailedRecords)
	assert.Equal(t, r.TotalRecords, r.MigratedRecords+r.FailedRecords)
	require.Len(t, r.ValidationErrors, 1)
	assert.Contains(t, r.ValidationErrors[0], "first_name")

	assert.Len(t, target.rows["patients"], 9)
	for _, row := range target.rows["patients"] {
		assert.Equal(t, models.DefaultProvenanceMarker, row["migration_source"].Text())
	}

	types := eventTypes(sink)
	assert.Contains(t, types, audit.MigrationStarted)
	assert.Contains(t, types, audit.TableMigrationCompleted)
	assert.Contains(t, types, audit.MigrationCompleted)
}

func TestExecuteMigrationCompletes(t *testing.T) {
	source := &fakeSource{tables: map[string][]models.Row{"users": sourceRows(10)}}
	target := newFakeTarget()

	cfg := testConfig()
	cfg.BatchSize = 3 // force multiple batches
	orch := NewOrchestrator(cfg, []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, audit.NewMemorySink(), nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusCompleted, results[0].Status)
	assert.Equal(t, 10, results[0].MigratedRecords)
	assert.Equal(t, 0, results[0].FailedRecords)
	assert.Equal(t, 4, target.writes)

	progress := orch.GetMigrationProgress()
	assert.Equal(t, models.StatusCompleted, progress.Status)
	assert.Equal(t, 10, progress.MigratedRecords)
	assert.Equal(t, 1, progress.CompletedTables)
}

func TestDryRunSkipsTargetWrites(t *testing.T) {
	source := &fakeSource{tables: map[string][]models.Row{"users": sourceRows(5)}}
	target := newFakeTarget()

	cfg := testConfig()
	cfg.DryRun = true
	orch := NewOrchestrator(cfg, []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, audit.NewMemorySink(), nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, results[0].Status)
	assert.Equal(t, 5, results[0].MigratedRecords)
	assert.Zero(t, target.writes)
}

func TestValidationDisabledSkipsRules(t *testing.T) {
	rows := sourceRows(3)
	rows[1]["first_name"] = models.StringValue("   ") // would fail "required" validation

	source := &fakeSource{tables: map[string][]models.Row{"users": rows}}
	target := newFakeTarget()

	cfg := testConfig()
	cfg.ValidationEnabled = false
	orch := NewOrchestrator(cfg, []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, audit.NewMemorySink(), nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, results[0].Status)
	assert.Equal(t, 3, results[0].MigratedRecords)
}

func TestConnectorErrorsRetryThenSucceed(t *testing.T) {
	source := &fakeSource{
		tables:        map[string][]models.Row{"users": sourceRows(4)},
		countFailures: 2,
		readFailures:  1,
	}
	target := newFakeTarget()

	orch := NewOrchestrator(testConfig(), []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, audit.NewMemorySink(), nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, results[0].Status)
}

func TestConnectorErrorsAbortAfterRetryExhaustion(t *testing.T) {
	source := &fakeSource{
		tables:        map[string][]models.Row{"users": sourceRows(4)},
		countFailures: 10,
	}
	sink := audit.NewMemorySink()

	cfg := testConfig()
	cfg.MaxRetries = 2
	orch := NewOrchestrator(cfg, []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": newFakeTarget()}, sink, nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.Error(t, err)

	var ce *ConnectorError
	assert.True(t, errors.As(err, &ce))
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusFailed, results[0].Status)
	assert.Contains(t, eventTypes(sink), audit.MigrationFailed)
	assert.Equal(t, models.StatusFailed, orch.GetMigrationProgress().Status)
}

func TestCancellationStopsAtBatchBoundary(t *testing.T) {
	source := &fakeSource{tables: map[string][]models.Row{"users": sourceRows(10)}}
	target := newFakeTarget()

	orch := NewOrchestrator(testConfig(), []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, audit.NewMemorySink(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.ExecuteMigration(ctx)
	require.Error(t, err)
	assert.Zero(t, target.writes)
	assert.Equal(t, models.StatusCancelled, orch.GetMigrationProgress().Status)
}

// hookedSource runs a hook before each read so tests can fail or stall
// specific tables. The hook runs outside the lock so a stalled read
// never blocks another service's reads.
type hookedSource struct {
	*fakeSource
	readHook func(ctx context.Context, table string, offset int) error
}

func (h *hookedSource) ReadBatch(ctx context.Context, table, key string, limit, offset int) ([]models.Row, error) {
	if h.readHook != nil {
		if err := h.readHook(ctx, table, offset); err != nil {
			return nil, err
		}
	}
	return h.fakeSource.ReadBatch(ctx, table, key, limit, offset)
}

func TestSiblingServiceFailureMarksRunFailed(t *testing.T) {
	appointments := models.TableMigrationConfig{
		Service:     "appointments",
		SourceTable: "bookings",
		TargetTable: "appointments",
		SourceKey:   "id",
		Transformations: []models.TransformationRule{
			{SourceColumn: "id", TargetColumn: "appointment_id", Required: true},
		},
	}

	source := &hookedSource{
		fakeSource: &fakeSource{tables: map[string][]models.Row{
			"users":    sourceRows(3),
			"bookings": sourceRows(3),
		}},
		readHook: func(ctx context.Context, table string, offset int) error {
			if table == "bookings" {
				return errors.New("connection reset")
			}
			if offset > 0 {
				// Hold the healthy service here until the sibling's
				// failure stops the run, so it observes the stop at its
				// next batch boundary.
				<-ctx.Done()
			}
			return nil
		},
	}

	cfg := testConfig()
	cfg.Targets = map[string]string{"patients": "a", "appointments": "b"}
	cfg.MaxRetries = 0
	cfg.BatchSize = 1
	orch := NewOrchestrator(cfg,
		[]models.TableMigrationConfig{patientsTable(), appointments},
		source,
		map[string]TargetWriter{"patients": newFakeTarget(), "appointments": newFakeTarget()},
		audit.NewMemorySink(), nil)

	_, err := orch.ExecuteMigration(context.Background())
	require.Error(t, err)

	// The caller never cancelled: a run stopped by a connector error is
	// failed, not cancelled.
	var ce *ConnectorError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, models.StatusFailed, orch.GetMigrationProgress().Status)
}

func TestRollbackServiceIsIdempotent(t *testing.T) {
	source := &fakeSource{tables: map[string][]models.Row{"users": sourceRows(6)}}
	target := newFakeTarget()
	sink := audit.NewMemorySink()

	orch := NewOrchestrator(testConfig(), []models.TableMigrationConfig{patientsTable()},
		source, map[string]TargetWriter{"patients": target}, sink, nil)

	_, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	require.Len(t, target.rows["patients"], 6)

	require.NoError(t, orch.RollbackService(context.Background(), "patients"))
	assert.Empty(t, target.rows["patients"])

	// Second rollback has nothing left to delete and must not fail.
	require.NoError(t, orch.RollbackService(context.Background(), "patients"))
	assert.Contains(t, eventTypes(sink), audit.MigrationRollback)
}

func TestRollbackUnknownService(t *testing.T) {
	orch := NewOrchestrator(testConfig(), nil, &fakeSource{},
		map[string]TargetWriter{"patients": newFakeTarget()}, audit.NewMemorySink(), nil)

	err := orch.RollbackService(context.Background(), "ghosts")
	var re *RollbackError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestServicesMigrateIndependently(t *testing.T) {
	appointments := models.TableMigrationConfig{
		Service:     "appointments",
		SourceTable: "bookings",
		TargetTable: "appointments",
		SourceKey:   "id",
		Transformations: []models.TransformationRule{
			{SourceColumn: "id", TargetColumn: "appointment_id", Required: true},
		},
	}

	source := &fakeSource{tables: map[string][]models.Row{
		"users":    sourceRows(4),
		"bookings": sourceRows(3),
	}}
	patientsTarget := newFakeTarget()
	appointmentsTarget := newFakeTarget()

	cfg := testConfig()
	cfg.Targets = map[string]string{"patients": "a", "appointments": "b"}
	orch := NewOrchestrator(cfg,
		[]models.TableMigrationConfig{patientsTable(), appointments},
		source,
		map[string]TargetWriter{"patients": patientsTarget, "appointments": appointmentsTarget},
		audit.NewMemorySink(), nil)

	results, err := orch.ExecuteMigration(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, patientsTarget.rows["patients"], 4)
	assert.Len(t, appointmentsTarget.rows["appointments"], 3)
}

func TestShutdownIsSafeWithoutRun(t *testing.T) {
	source := &fakeSource{tables: map[string][]models.Row{}}
	target := newFakeTarget()
	orch := NewOrchestrator(testConfig(), nil, source,
		map[string]TargetWriter{"patients": target}, audit.NewMemorySink(), nil)

	require.NoError(t, orch.Shutdown())
	assert.True(t, source.closed)
	assert.True(t, target.closed)

	// Calling again after connections are released is a no-op.
	require.NoError(t, orch.Shutdown())
}

func eventTypes(sink *audit.MemorySink) []audit.EventType {
	events := sink.Events()
	types := make([]audit.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
