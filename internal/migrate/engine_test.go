package migrate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredata/migrator/pkg/models"
)

func testTableConfig() *models.TableMigrationConfig {
	return &models.TableMigrationConfig{
		Service:     "patients",
		SourceTable: "users",
		TargetTable: "patients",
		SourceKey:   "id",
		Transformations: []models.TransformationRule{
			{SourceColumn: "id", TargetColumn: "patient_id", Required: true},
			{SourceColumn: "first_name", TargetColumn: "first_name", Transform: "trim", Required: true},
		},
	}
}

func TestEngineAppliesTrimRule(t *testing.T) {
	engine := NewEngine(testTableConfig(), "test-run", nil)

	out, err := engine.Transform(models.Row{
		"id":         models.NumberValue(1),
		"first_name": models.StringValue("  John  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "John", out["first_name"].Text())
	assert.Equal(t, "1", out["patient_id"].Text())
}

func TestEngineMissingRequiredFieldNamesColumn(t *testing.T) {
	engine := NewEngine(testTableConfig(), "test-run", nil)

	_, err := engine.Transform(models.Row{"id": models.NumberValue(1)})
	require.Error(t, err)

	var te *TransformationError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "first_name", te.Column)
	assert.Contains(t, err.Error(), "first_name")
}

func TestEngineStampsProvenance(t *testing.T) {
	engine := NewEngine(testTableConfig(), "run-marker", nil)
	fixed := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	out, err := engine.Transform(models.Row{
		"id":         models.NumberValue(7),
		"first_name": models.StringValue("Ada"),
	})
	require.NoError(t, err)

	assert.Equal(t, "run-marker", out["migration_source"].Text())
	stamped, ok := out["created_at"].Time()
	require.True(t, ok)
	assert.Equal(t, fixed, stamped)
}

func TestEngineOptionalMissingFieldIsNull(t *testing.T) {
	cfg := testTableConfig()
	cfg.Transformations = append(cfg.Transformations, models.TransformationRule{
		SourceColumn: "middle_name", TargetColumn: "middle_name", Transform: "trim",
	})
	engine := NewEngine(cfg, "test-run", nil)

	out, err := engine.Transform(models.Row{
		"id":         models.NumberValue(1),
		"first_name": models.StringValue("John"),
	})
	require.NoError(t, err)
	assert.True(t, out["middle_name"].IsNull())
}

type staticEncryptor struct{}

func (staticEncryptor) Encrypt(s string) (string, error) { return "enc(" + s + ")", nil }
func (staticEncryptor) Decrypt(s string) (string, error) { return s, nil }

func TestEngineEncryptsPIIColumns(t *testing.T) {
	cfg := testTableConfig()
	cfg.ContainsPII = true
	cfg.Transformations[1].PII = true
	engine := NewEngine(cfg, "test-run", staticEncryptor{})

	out, err := engine.Transform(models.Row{
		"id":         models.NumberValue(1),
		"first_name": models.StringValue("  John  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "enc(John)", out["first_name"].Text())
}

func TestEngineRejectingTransformFailsOnlyRecord(t *testing.T) {
	cfg := testTableConfig()
	cfg.Transformations = append(cfg.Transformations, models.TransformationRule{
		SourceColumn: "dob", TargetColumn: "date_of_birth", Transform: "uk_date",
	})
	engine := NewEngine(cfg, "test-run", nil)

	_, err := engine.Transform(models.Row{
		"id":         models.NumberValue(1),
		"first_name": models.StringValue("John"),
		"dob":        models.StringValue("not a date"),
	})
	var te *TransformationError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "date_of_birth", te.Column)
}

func TestEngineTargetColumns(t *testing.T) {
	engine := NewEngine(testTableConfig(), "test-run", nil)
	assert.Equal(t,
		[]string{"patient_id", "first_name", "created_at", "migration_source"},
		engine.TargetColumns())
}
