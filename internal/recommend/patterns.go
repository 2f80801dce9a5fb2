package recommend

import "github.com/caredata/migrator/pkg/models"

// defaultPatterns is the seed pattern library: field-name regexes
// pointing at the curated target schema, with transformation hints
// naming registry transforms.
func defaultPatterns() []models.FieldPattern {
	return []models.FieldPattern{
		{Pattern: `(first|fore|given)[_ ]?name`, TargetField: "first_name", Confidence: 0.95, Context: "demographics", TransformationHint: "title_case"},
		{Pattern: `(last|sur|family)[_ ]?name`, TargetField: "last_name", Confidence: 0.95, Context: "demographics", TransformationHint: "title_case"},
		{Pattern: `full[_ ]?name|patient[_ ]?name`, TargetField: "full_name", Confidence: 0.85, Context: "demographics", TransformationHint: "title_case"},
		{Pattern: `(dob|birth[_ ]?date|date[_ ]?of[_ ]?birth)`, TargetField: "date_of_birth", Confidence: 0.95, Context: "demographics", TransformationHint: "uk_date"},
		{Pattern: `nhs[_ ]?(number|no|id)?`, TargetField: "nhs_number", Confidence: 0.98, Context: "identifiers", TransformationHint: "nhs_number"},
		{Pattern: `(phone|mobile|tel|telephone)`, TargetField: "phone_number", Confidence: 0.9, Context: "contact", TransformationHint: "uk_phone"},
		{Pattern: `e?[_ ]?mail`, TargetField: "email_address", Confidence: 0.9, Context: "contact", TransformationHint: "lowercase"},
		{Pattern: `post[_ ]?code|zip`, TargetField: "postcode", Confidence: 0.92, Context: "address", TransformationHint: "postcode"},
		{Pattern: `addr(ess)?([_ ]?(line)?[_ ]?1)?$`, TargetField: "address_line_1", Confidence: 0.85, Context: "address", TransformationHint: "trim"},
		{Pattern: `addr(ess)?[_ ]?(line)?[_ ]?2`, TargetField: "address_line_2", Confidence: 0.85, Context: "address", TransformationHint: "trim"},
		{Pattern: `(city|town)`, TargetField: "city", Confidence: 0.85, Context: "address", TransformationHint: "title_case"},
		{Pattern: `medication|drug|prescri(ption|bed)`, TargetField: "medication", Confidence: 0.88, Context: "clinical", TransformationHint: "medication_parse"},
		{Pattern: `allerg(y|ies)`, TargetField: "allergies", Confidence: 0.88, Context: "clinical", TransformationHint: "trim"},
		{Pattern: `diagnos(is|es)|condition`, TargetField: "diagnosis", Confidence: 0.85, Context: "clinical", TransformationHint: "trim"},
		{Pattern: `gp|doctor|practitioner`, TargetField: "gp_practice", Confidence: 0.8, Context: "care", TransformationHint: "title_case"},
		{Pattern: `emergency[_ ]?contact`, TargetField: "emergency_contact", Confidence: 0.85, Context: "contact", TransformationHint: "title_case"},
		{Pattern: `gender|sex`, TargetField: "gender", Confidence: 0.9, Context: "demographics", TransformationHint: "lowercase"},
		{Pattern: `(^|_)id$|identifier|patient[_ ]?(id|no)`, TargetField: "patient_id", Confidence: 0.9, Context: "identifiers", TransformationHint: "identity"},
	}
}

// defaultSemantics classifies the curated target fields. Clinical
// relevance drives recommendation ordering; data classification drives
// PII handling downstream.
func defaultSemantics() map[string]models.SemanticAnalysis {
	return map[string]models.SemanticAnalysis{
		"nhs_number": {
			SemanticCategory: "national_identifier", HealthcareContext: "patient identity",
			ClinicalRelevance: "high", RegulatoryImportance: "critical", DataClassification: "pii",
		},
		"patient_id": {
			SemanticCategory: "identifier", HealthcareContext: "record linkage",
			ClinicalRelevance: "high", RegulatoryImportance: "high", DataClassification: "pseudonymous",
		},
		"medication": {
			SemanticCategory: "clinical", HealthcareContext: "prescribing",
			ClinicalRelevance: "high", RegulatoryImportance: "high", DataClassification: "special_category",
		},
		"allergies": {
			SemanticCategory: "clinical", HealthcareContext: "safety alerts",
			ClinicalRelevance: "high", RegulatoryImportance: "high", DataClassification: "special_category",
		},
		"diagnosis": {
			SemanticCategory: "clinical", HealthcareContext: "care planning",
			ClinicalRelevance: "high", RegulatoryImportance: "high", DataClassification: "special_category",
		},
		"date_of_birth": {
			SemanticCategory: "demographic", HealthcareContext: "patient identity",
			ClinicalRelevance: "medium", RegulatoryImportance: "high", DataClassification: "pii",
		},
		"first_name": {
			SemanticCategory: "demographic", HealthcareContext: "patient identity",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"last_name": {
			SemanticCategory: "demographic", HealthcareContext: "patient identity",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"full_name": {
			SemanticCategory: "demographic", HealthcareContext: "patient identity",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"gender": {
			SemanticCategory: "demographic", HealthcareContext: "patient identity",
			ClinicalRelevance: "medium", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"phone_number": {
			SemanticCategory: "contact", HealthcareContext: "patient contact",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"email_address": {
			SemanticCategory: "contact", HealthcareContext: "patient contact",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"address_line_1": {
			SemanticCategory: "contact", HealthcareContext: "patient contact",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"address_line_2": {
			SemanticCategory: "contact", HealthcareContext: "patient contact",
			ClinicalRelevance: "low", RegulatoryImportance: "low", DataClassification: "pii",
		},
		"city": {
			SemanticCategory: "contact", HealthcareContext: "patient contact",
			ClinicalRelevance: "low", RegulatoryImportance: "low", DataClassification: "pii",
		},
		"postcode": {
			SemanticCategory: "contact", HealthcareContext: "patient contact",
			ClinicalRelevance: "low", RegulatoryImportance: "medium", DataClassification: "pii",
		},
		"gp_practice": {
			SemanticCategory: "care_team", HealthcareContext: "primary care",
			ClinicalRelevance: "medium", RegulatoryImportance: "medium", DataClassification: "internal",
		},
		"emergency_contact": {
			SemanticCategory: "contact", HealthcareContext: "next of kin",
			ClinicalRelevance: "medium", RegulatoryImportance: "medium", DataClassification: "pii",
		},
	}
}

// semanticKeywords backs the fallback path for fields the pattern
// library misses: substring hits on these map to the target at a fixed
// lower confidence.
var semanticKeywords = map[string][]string{
	"first_name":        {"first", "given", "forename"},
	"last_name":         {"last", "surname", "family"},
	"date_of_birth":     {"birth", "born", "dob"},
	"nhs_number":        {"nhs"},
	"phone_number":      {"phone", "mobile", "tel", "contact_number"},
	"email_address":     {"email", "mail"},
	"postcode":          {"postcode", "postal"},
	"address_line_1":    {"address", "street"},
	"city":              {"city", "town"},
	"medication":        {"medication", "medicine", "drug", "prescription"},
	"allergies":         {"allergy", "allergies"},
	"diagnosis":         {"diagnosis", "condition", "illness"},
	"gp_practice":       {"gp", "practice", "surgery", "doctor"},
	"emergency_contact": {"emergency", "kin"},
	"gender":            {"gender", "sex"},
	"patient_id":        {"patient", "record_id", "identifier"},
}
