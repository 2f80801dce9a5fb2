package models

// MappingRecommendation is one ranked source->target field suggestion
// produced by the recommender for human review. Accepted
// recommendations are frozen into TableMigrationConfig rules.
type MappingRecommendation struct {
	MappingID            string                `json:"mappingId"`
	SourceField          string                `json:"sourceField"`
	TargetField          string                `json:"targetField"`
	Confidence           float64               `json:"confidence"`
	Reasoning            string                `json:"reasoning"`
	TransformationType   string                `json:"transformationType"`
	TransformationLogic  string                `json:"transformationLogic,omitempty"`
	ValidationRules      []string              `json:"validationRules,omitempty"`
	SampleTransformation *SampleTransformation `json:"sampleTransformation,omitempty"`
	AlternativeTargets   []string              `json:"alternativeTargets,omitempty"`
	DataQualityImpact    DataQualityImpact     `json:"dataQualityImpact"`
}

// SampleTransformation shows one sampled value run through the
// recommended transformation so the reviewer can judge the mapping.
type SampleTransformation struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation"`
}

// DataQualityImpact scores the sampled source field on three axes,
// each in [0,1].
type DataQualityImpact struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
}

// FieldPattern is one entry of the mutable pattern library: a regex
// over source field names pointing at a target field with a learned
// confidence.
type FieldPattern struct {
	Pattern            string  `json:"pattern"`
	TargetField        string  `json:"targetField"`
	Confidence         float64 `json:"confidence"`
	Context            string  `json:"context"`
	TransformationHint string  `json:"transformationHint,omitempty"`
}

// SemanticAnalysis classifies a target field's clinical and regulatory
// weight. Keyed by target field name in the recommender's vocabulary.
type SemanticAnalysis struct {
	SemanticCategory     string `json:"semanticCategory"`
	HealthcareContext    string `json:"healthcareContext"`
	ClinicalRelevance    string `json:"clinicalRelevance"` // high | medium | low
	RegulatoryImportance string `json:"regulatoryImportance"`
	DataClassification   string `json:"dataClassification"`
}

// DataRelationship records a heuristic link between two sampled source
// fields (an identifier plus a contact or medical field).
type DataRelationship struct {
	PrimaryField     string  `json:"primaryField"`
	RelatedField     string  `json:"relatedField"`
	RelationshipType string  `json:"relationshipType"` // one-to-one | one-to-many
	Confidence       float64 `json:"confidence"`
	Description      string  `json:"description"`
}

// MappingFeedback is a human review verdict fed back into the pattern
// library.
type MappingFeedback struct {
	MappingID              string                 `json:"mappingId"`
	SourceField            string                 `json:"sourceField"`
	Accepted               bool                   `json:"accepted"`
	UserSelectedTarget     string                 `json:"userSelectedTarget,omitempty"`
	OriginalRecommendation *MappingRecommendation `json:"originalRecommendation,omitempty"`
}
