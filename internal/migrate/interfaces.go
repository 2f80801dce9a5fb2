package migrate

import (
	"context"

	"github.com/caredata/migrator/pkg/models"
)

// SourceReader pages rows out of the monolithic source store.
type SourceReader interface {
	// Count returns the number of rows the table migration will read.
	Count(ctx context.Context, table string) (int, error)
	// ReadBatch returns up to limit rows ordered by orderBy, starting
	// at offset. Row order is stable across calls.
	ReadBatch(ctx context.Context, table, orderBy string, limit, offset int) ([]models.Row, error)
	Close() error
}

// TargetWriter persists transformed rows into one per-service target
// store.
type TargetWriter interface {
	// WriteBatch inserts all rows in a single statement inside one
	// transaction; either the whole batch lands or none of it does.
	WriteBatch(ctx context.Context, table string, columns []string, rows []models.Row) error
	// DeleteByMarker transactionally removes every row in the given
	// tables stamped with the provenance marker and reports how many
	// rows went away. Deleting nothing is not an error.
	DeleteByMarker(ctx context.Context, tables []string, marker string) (int64, error)
	Close() error
}

// Encryptor is the PII encryption collaborator. Implementations may
// perform I/O (e.g. a KMS call) and must honor context-free retry
// budgets of their own.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
