package migrate

import (
	"fmt"
	"time"

	"github.com/caredata/migrator/pkg/models"
)

// Engine converts one source row into a target-shaped row per the
// ordered transformation rules of a table config.
type Engine struct {
	config    *models.TableMigrationConfig
	marker    string
	encryptor Encryptor
	now       func() time.Time
}

// NewEngine builds a transformation engine for one table. encryptor
// may be nil when the table carries no PII.
func NewEngine(config *models.TableMigrationConfig, marker string, encryptor Encryptor) *Engine {
	return &Engine{
		config:    config,
		marker:    marker,
		encryptor: encryptor,
		now:       time.Now,
	}
}

// Transform applies the table's rules in declared order. A missing
// required source value or a rejecting transformation fails only this
// record. The result is stamped with created_at and the provenance
// marker used by rollback.
func (e *Engine) Transform(source models.Row) (models.Row, error) {
	target := make(models.Row, len(e.config.Transformations)+2)

	for _, rule := range e.config.Transformations {
		val, exists := source[rule.SourceColumn]
		if !exists || val.IsNull() {
			if rule.Required {
				return nil, &TransformationError{
					Column: rule.TargetColumn,
					Err:    fmt.Errorf("required field %s is missing", rule.TargetColumn),
				}
			}
			target[rule.TargetColumn] = models.Null()
			continue
		}

		fn, err := ResolveTransform(rule.Transform)
		if err != nil {
			return nil, &TransformationError{Column: rule.TargetColumn, Err: err}
		}
		out, err := fn(val)
		if err != nil {
			return nil, &TransformationError{Column: rule.TargetColumn, Err: err}
		}

		if rule.PII && e.config.ContainsPII && e.encryptor != nil && !out.IsNull() {
			enc, err := e.encryptor.Encrypt(out.Text())
			if err != nil {
				return nil, &TransformationError{Column: rule.TargetColumn, Err: err}
			}
			out = models.StringValue(enc)
		}

		target[rule.TargetColumn] = out
	}

	target["created_at"] = models.DateValue(e.now())
	target["migration_source"] = models.StringValue(e.marker)
	return target, nil
}

// TargetColumns returns the deterministic column list of transformed
// rows: configured target columns in rule order plus the two stamped
// columns.
func (e *Engine) TargetColumns() []string {
	cols := make([]string, 0, len(e.config.Transformations)+2)
	for _, rule := range e.config.Transformations {
		cols = append(cols, rule.TargetColumn)
	}
	return append(cols, "created_at", "migration_source")
}
