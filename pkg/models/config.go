package models

// MigrationConfig is the run-wide configuration. It is loaded once,
// validated, and treated as read-only for the lifetime of a run.
type MigrationConfig struct {
	SourceConn        string            `json:"sourceConn"`
	Targets           map[string]string `json:"targets"` // serviceName -> connection string
	BatchSize         int               `json:"batchSize"`
	MaxRetries        int               `json:"maxRetries"`
	RetryDelayMs      int               `json:"retryDelayMs"`
	ValidationEnabled bool              `json:"validationEnabled"`
	DryRun            bool              `json:"dryRun"`
	WorkerLimit       int               `json:"workerLimit,omitempty"`
	ProvenanceMarker  string            `json:"provenanceMarker,omitempty"`
	AuditURI          string            `json:"auditUri,omitempty"`
}

// DefaultProvenanceMarker stamps rows written by this tool so rollback
// can find them without touching pre-existing target data.
const DefaultProvenanceMarker = "monolith-migration"

// TableMigrationConfig describes how one source table maps onto one
// target table. Rule order is significant: transformation rules apply
// in declared order.
type TableMigrationConfig struct {
	Service           string               `json:"service"`
	SourceTable       string               `json:"sourceTable"`
	TargetTable       string               `json:"targetTable"`
	SourceKey         string               `json:"sourceKey"` // order column for stable paging
	ContainsPII       bool                 `json:"containsPII"`
	HealthcareContext string               `json:"healthcareContext,omitempty"`
	RetentionYears    int                  `json:"retentionYears,omitempty"`
	Transformations   []TransformationRule `json:"transformations"`
	Validations       []ValidationRule     `json:"validations,omitempty"`
}

// TransformationRule maps one source column to one target column
// through a named pure transformation from the registry. Closures are
// never stored in configuration; plans stay serializable.
type TransformationRule struct {
	SourceColumn string `json:"sourceColumn"`
	TargetColumn string `json:"targetColumn"`
	Transform    string `json:"transform"` // registry name, "identity" when empty
	Required     bool   `json:"required"`
	PII          bool   `json:"pii,omitempty"` // encrypted when table ContainsPII
}

// ValidationKind selects one of the built-in validators.
type ValidationKind string

const (
	ValidationRequired  ValidationKind = "required"
	ValidationNHSNumber ValidationKind = "nhs_number"
	ValidationEmail     ValidationKind = "email"
	ValidationPhone     ValidationKind = "phone"
	ValidationCustom    ValidationKind = "custom"
)

// ValidationRule checks one target column after transformation.
// Custom predicates are attached programmatically after the plan is
// loaded and never travel through JSON.
type ValidationRule struct {
	Column  string           `json:"column"`
	Kind    ValidationKind   `json:"kind"`
	Message string           `json:"errorMessage,omitempty"`
	Custom  func(Value) bool `json:"-"`
}
