package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/caredata/migrator/pkg/models"
)

// PostgresTarget writes transformed batches into one per-service
// PostgreSQL store.
type PostgresTarget struct {
	DB *sql.DB
}

func NewPostgresTarget(db *sql.DB) *PostgresTarget {
	return &PostgresTarget{DB: db}
}

// WriteBatch inserts the whole batch with a single multi-row INSERT
// inside one transaction.
func (t *PostgresTarget) WriteBatch(ctx context.Context, table string, columns []string, rows []models.Row) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*len(columns))
	for i, row := range rows {
		marks := make([]string, len(columns))
		for j, col := range columns {
			marks[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
			args = append(args, row[col].Interface())
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx for %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return fmt.Errorf("bulk insert into %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write tx for %s: %w", table, err)
	}
	return nil
}

// DeleteByMarker removes every provenance-stamped row from the given
// tables in one transaction. Calling it when nothing remains is a
// no-op, which keeps rollback idempotent.
func (t *PostgresTarget) DeleteByMarker(ctx context.Context, tables []string, marker string) (int64, error) {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rollback tx: %w", err)
	}

	var total int64
	for _, table := range tables {
		query := fmt.Sprintf("DELETE FROM %s WHERE migration_source = $1", table)
		res, err := tx.ExecContext(ctx, query, marker)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rollback tx: %w", err)
	}
	return total, nil
}

func (t *PostgresTarget) Close() error {
	if t.DB == nil {
		return nil
	}
	return t.DB.Close()
}
