package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/caredata/migrator/pkg/models"
)

// MSSQLSource reads batches out of the monolithic MS SQL store using
// keyset-ordered OFFSET/FETCH paging.
type MSSQLSource struct {
	DB *sql.DB
}

func NewMSSQLSource(db *sql.DB) *MSSQLSource {
	return &MSSQLSource{DB: db}
}

func (s *MSSQLSource) Count(ctx context.Context, table string) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := s.DB.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

func (s *MSSQLSource) ReadBatch(ctx context.Context, table, orderBy string, limit, offset int) ([]models.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY",
		table, orderBy, offset, limit)

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read batch from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}

	var results []models.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row from %s: %w", table, err)
		}

		row := make(models.Row, len(cols))
		for i, col := range cols {
			row[col] = models.FromAny(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return results, nil
}

func (s *MSSQLSource) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
