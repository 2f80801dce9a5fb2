// Package config loads the migration plan file and environment
// overrides for connection strings.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caredata/migrator/pkg/models"
)

// Plan is the full migration plan: the run-wide config plus the
// ordered per-table configs. Loaded once and treated as read-only.
type Plan struct {
	Migration models.MigrationConfig        `json:"migration"`
	Tables    []models.TableMigrationConfig `json:"tables"`
}

// LoadPlan reads and parses a plan file, applies environment
// overrides, and validates the result.
func LoadPlan(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %q: %w", path, err)
	}

	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %q: %w", path, err)
	}

	plan.applyEnv()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// applyEnv lets deployment environments override connection strings
// without editing the plan file.
func (p *Plan) applyEnv() {
	if v := os.Getenv("SOURCE_CONNECTION_STRING"); v != "" {
		p.Migration.SourceConn = v
	}
	if v := os.Getenv("AUDIT_MONGO_URI"); v != "" {
		p.Migration.AuditURI = v
	}
}

// Validate checks the plan for configuration errors before any
// connection is opened.
func (p *Plan) Validate() error {
	if p.Migration.SourceConn == "" {
		return fmt.Errorf("plan is missing sourceConn (or SOURCE_CONNECTION_STRING)")
	}
	if len(p.Migration.Targets) == 0 {
		return fmt.Errorf("plan declares no target services")
	}
	if len(p.Tables) == 0 {
		return fmt.Errorf("plan declares no tables")
	}
	for i, tc := range p.Tables {
		if tc.Service == "" || tc.SourceTable == "" || tc.TargetTable == "" {
			return fmt.Errorf("table %d is missing service, sourceTable or targetTable", i)
		}
		if tc.SourceKey == "" {
			return fmt.Errorf("table %s has no sourceKey order column", tc.SourceTable)
		}
		if _, ok := p.Migration.Targets[tc.Service]; !ok {
			return fmt.Errorf("table %s references unconfigured service %q", tc.SourceTable, tc.Service)
		}
		if len(tc.Transformations) == 0 {
			return fmt.Errorf("table %s has no transformation rules", tc.SourceTable)
		}
		for _, vr := range tc.Validations {
			switch vr.Kind {
			case models.ValidationRequired, models.ValidationNHSNumber,
				models.ValidationEmail, models.ValidationPhone, models.ValidationCustom:
			default:
				return fmt.Errorf("table %s has unknown validation kind %q", tc.SourceTable, vr.Kind)
			}
		}
	}
	return nil
}

// FilterService narrows a plan down to one service for partial runs.
func (p *Plan) FilterService(service string) (*Plan, error) {
	conn, ok := p.Migration.Targets[service]
	if !ok {
		return nil, fmt.Errorf("service %q is not configured", service)
	}
	out := *p
	out.Migration.Targets = map[string]string{service: conn}
	out.Tables = nil
	for _, tc := range p.Tables {
		if tc.Service == service {
			out.Tables = append(out.Tables, tc)
		}
	}
	if len(out.Tables) == 0 {
		return nil, fmt.Errorf("service %q has no configured tables", service)
	}
	return &out, nil
}

// AttachCustomRule binds a predicate to a declared custom validation
// rule after plan load. Custom predicates never travel through JSON.
func (p *Plan) AttachCustomRule(sourceTable, column string, predicate func(models.Value) bool) error {
	for ti := range p.Tables {
		if p.Tables[ti].SourceTable != sourceTable {
			continue
		}
		for vi := range p.Tables[ti].Validations {
			vr := &p.Tables[ti].Validations[vi]
			if vr.Column == column && vr.Kind == models.ValidationCustom {
				vr.Custom = predicate
				return nil
			}
		}
	}
	return fmt.Errorf("no custom validation rule on %s.%s", sourceTable, column)
}
