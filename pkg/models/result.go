package models

import "time"

// MigrationStatus is the lifecycle state of a table result or a whole run.
type MigrationStatus string

const (
	StatusPending    MigrationStatus = "pending"
	StatusInProgress MigrationStatus = "in_progress"
	StatusCompleted  MigrationStatus = "completed"
	StatusPartial    MigrationStatus = "partial"
	StatusFailed     MigrationStatus = "failed"
	StatusCancelled  MigrationStatus = "cancelled"
)

// MigrationResult is the per-table outcome of a run. For completed and
// partial results MigratedRecords+FailedRecords always equals
// TotalRecords.
type MigrationResult struct {
	Service          string          `json:"service"`
	SourceTable      string          `json:"sourceTable"`
	TargetTable      string          `json:"targetTable"`
	Status           MigrationStatus `json:"status"`
	TotalRecords     int             `json:"totalRecords"`
	MigratedRecords  int             `json:"migratedRecords"`
	FailedRecords    int             `json:"failedRecords"`
	ValidationErrors []string        `json:"validationErrors,omitempty"`
	StartedAt        time.Time       `json:"startedAt"`
	CompletedAt      time.Time       `json:"completedAt,omitempty"`
}

// MigrationProgress is a point-in-time snapshot of a run. Created once
// per run and mutated in place by the orchestrator; callers receive
// copies.
type MigrationProgress struct {
	TotalPhases         int             `json:"totalPhases"`
	CurrentPhase        int             `json:"currentPhase"`
	TotalTables         int             `json:"totalTables"`
	CompletedTables     int             `json:"completedTables"`
	TotalRecords        int             `json:"totalRecords"`
	MigratedRecords     int             `json:"migratedRecords"`
	StartTime           time.Time       `json:"startTime"`
	Status              MigrationStatus `json:"status"`
	EstimatedCompletion *time.Time      `json:"estimatedCompletion,omitempty"`
}

// EstimateCompletion extrapolates linearly from throughput so far:
// startTime + elapsed/migrated * total. Undefined (nil) until at least
// one record has migrated. Intentionally naive; constant throughput is
// assumed.
func (p *MigrationProgress) EstimateCompletion(now time.Time) *time.Time {
	if p.Status != StatusInProgress || p.MigratedRecords <= 0 || p.TotalRecords <= 0 {
		return nil
	}
	elapsed := now.Sub(p.StartTime)
	perRecord := elapsed / time.Duration(p.MigratedRecords)
	eta := p.StartTime.Add(perRecord * time.Duration(p.TotalRecords))
	return &eta
}
