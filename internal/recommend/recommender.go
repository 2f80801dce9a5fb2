package recommend

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/caredata/migrator/internal/migrate"
	"github.com/caredata/migrator/pkg/logger"
	"github.com/caredata/migrator/pkg/models"
)

const (
	fallbackKeywordConfidence   = 0.7
	fallbackSubstringConfidence = 0.75
	accuracyBaseline            = 0.95
	lowCompleteness             = 0.9
	relationshipBoost           = 0.05
)

// Recommender turns sampled source records into ranked mapping
// recommendations for human review.
type Recommender struct {
	store *Store
}

func NewRecommender(store *Store) *Recommender {
	if store == nil {
		store = NewStore()
	}
	return &Recommender{store: store}
}

// Store exposes the underlying pattern store for snapshot/restore.
func (r *Recommender) Store() *Store { return r.store }

// GenerateMappings analyzes sampled records and emits one
// recommendation per populated source field that matches either the
// pattern library or the semantic vocabulary. Fields matching neither
// are omitted.
func (r *Recommender) GenerateMappings(samples []models.Row) ([]models.MappingRecommendation, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no sample records to analyze")
	}

	fields := populatedFields(samples)
	recs := make([]models.MappingRecommendation, 0, len(fields))
	byField := make(map[string]*models.MappingRecommendation, len(fields))

	for _, field := range fields {
		rec, ok := r.recommendField(field, samples)
		if !ok {
			continue
		}
		recs = append(recs, rec)
		byField[field] = &recs[len(recs)-1]
	}

	for _, rel := range r.DetectRelationships(fields) {
		if rec, ok := byField[rel.RelatedField]; ok {
			rec.Reasoning += fmt.Sprintf(" Related to identifier field %q (%s).", rel.PrimaryField, rel.RelationshipType)
			rec.Confidence = clamp(rec.Confidence + relationshipBoost)
		}
	}

	r.sortRecommendations(recs)
	return recs, nil
}

func (r *Recommender) recommendField(field string, samples []models.Row) (models.MappingRecommendation, bool) {
	rec := models.MappingRecommendation{
		MappingID:   uuid.NewString(),
		SourceField: field,
	}

	if best, ok := r.store.BestMatch(field); ok {
		rec.TargetField = best.TargetField
		rec.Confidence = clamp(best.Confidence)
		rec.Reasoning = fmt.Sprintf("Field name matches %s pattern %q.", best.Context, best.Pattern)
		rec.TransformationType = best.TransformationHint
		rec.TransformationLogic = transformationLogic(best.TransformationHint)
		rec.SampleTransformation = r.sampleTransformation(best.TransformationHint, field, samples)
		for _, alt := range r.store.Matches(field) {
			if alt.TargetField != best.TargetField && !contains(rec.AlternativeTargets, alt.TargetField) {
				rec.AlternativeTargets = append(rec.AlternativeTargets, alt.TargetField)
			}
		}
	} else if target, conf, ok := r.semanticFallback(field); ok {
		rec.TargetField = target
		rec.Confidence = conf
		rec.Reasoning = fmt.Sprintf("Field name resembles target %q by keyword similarity.", target)
		rec.TransformationType = "identity"
	} else {
		return rec, false
	}

	rec.ValidationRules = validationRulesFor(rec.TargetField)
	rec.DataQualityImpact = r.qualityImpact(rec.TargetField, field, samples)
	return rec, true
}

// semanticFallback maps a field by substring/keyword similarity
// against the curated vocabulary at a fixed lower confidence.
func (r *Recommender) semanticFallback(field string) (string, float64, bool) {
	name := normalizeField(field)
	for _, target := range r.store.SemanticTargets() {
		if strings.Contains(name, normalizeField(target)) || strings.Contains(normalizeField(target), name) {
			return target, fallbackSubstringConfidence, true
		}
	}
	for _, target := range r.store.SemanticTargets() {
		for _, kw := range semanticKeywords[target] {
			if strings.Contains(name, kw) {
				return target, fallbackKeywordConfidence, true
			}
		}
	}
	return "", 0, false
}

// sampleTransformation runs the hinted transform over one sampled
// value. A failing transform is reported in the explanation instead of
// discarding the recommendation.
func (r *Recommender) sampleTransformation(hint, field string, samples []models.Row) *models.SampleTransformation {
	input, ok := firstPopulated(field, samples)
	if !ok {
		return nil
	}

	sample := &models.SampleTransformation{Input: input.Text()}
	fn, err := migrate.ResolveTransform(hint)
	if err != nil {
		sample.Explanation = fmt.Sprintf("transformation %q unavailable: %v", hint, err)
		return sample
	}
	out, err := fn(input)
	if err != nil {
		sample.Explanation = fmt.Sprintf("sample value did not transform cleanly: %v", err)
		return sample
	}
	sample.Output = out.Text()
	sample.Explanation = fmt.Sprintf("applied %s transformation", displayName(hint))
	return sample
}

// qualityImpact scores the sampled field: completeness is the
// populated fraction, accuracy starts from a fixed baseline and is
// scaled down for clinically relevant targets with low completeness,
// consistency is the reciprocal of the distinct value formats seen.
func (r *Recommender) qualityImpact(target, field string, samples []models.Row) models.DataQualityImpact {
	populated := 0
	formats := make(map[string]struct{})
	for _, row := range samples {
		v, ok := row[field]
		if !ok || v.IsNull() || strings.TrimSpace(v.Text()) == "" {
			continue
		}
		populated++
		formats[inferFormat(v.Text())] = struct{}{}
	}

	completeness := float64(populated) / float64(len(samples))

	accuracy := accuracyBaseline
	if sem, ok := r.store.Semantic(target); ok && sem.ClinicalRelevance == "high" && completeness < lowCompleteness {
		accuracy = accuracyBaseline * completeness
	}

	consistency := 0.0
	if len(formats) > 0 {
		consistency = 1.0 / float64(len(formats))
	}

	return models.DataQualityImpact{
		Completeness: completeness,
		Accuracy:     accuracy,
		Consistency:  consistency,
	}
}

var identifierField = regexp.MustCompile(`(?i)((^|_)id$|identifier|nhs)`)

// DetectRelationships finds heuristic links: an identifier field plus
// a contact field implies one-to-many, plus a medical field implies
// one-to-one.
func (r *Recommender) DetectRelationships(fields []string) []models.DataRelationship {
	var idField string
	for _, f := range fields {
		if identifierField.MatchString(f) {
			idField = f
			break
		}
	}
	if idField == "" {
		return nil
	}

	var rels []models.DataRelationship
	for _, f := range fields {
		if f == idField {
			continue
		}
		switch {
		case isContactField(f):
			rels = append(rels, models.DataRelationship{
				PrimaryField:     idField,
				RelatedField:     f,
				RelationshipType: "one-to-many",
				Confidence:       0.8,
				Description:      fmt.Sprintf("%s appears to be a contact detail keyed by %s", f, idField),
			})
		case isMedicalField(f):
			rels = append(rels, models.DataRelationship{
				PrimaryField:     idField,
				RelatedField:     f,
				RelationshipType: "one-to-one",
				Confidence:       0.8,
				Description:      fmt.Sprintf("%s appears to be clinical data keyed by %s", f, idField),
			})
		}
	}
	return rels
}

// sortRecommendations orders by clinical relevance of the target, then
// confidence, then field name for deterministic output.
func (r *Recommender) sortRecommendations(recs []models.MappingRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := r.relevanceRank(recs[i].TargetField), r.relevanceRank(recs[j].TargetField)
		if ri != rj {
			return ri > rj
		}
		if recs[i].Confidence != recs[j].Confidence {
			return recs[i].Confidence > recs[j].Confidence
		}
		return recs[i].SourceField < recs[j].SourceField
	})
}

func (r *Recommender) relevanceRank(target string) int {
	sem, ok := r.store.Semantic(target)
	if !ok {
		return 0
	}
	switch sem.ClinicalRelevance {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

// LearnFromFeedback folds one reviewer verdict into the pattern
// library. Updates are serialized through the store's lock.
func (r *Recommender) LearnFromFeedback(fb models.MappingFeedback) error {
	return r.store.ApplyFeedback(fb)
}

// Dataset names one batch of sampled records.
type Dataset struct {
	Name    string
	Records []models.Row
}

// DatasetResult is the per-dataset outcome of a batch analysis.
type DatasetResult struct {
	Name            string
	Recommendations []models.MappingRecommendation
	Err             error
}

// BatchGenerateMappings analyzes each dataset independently; one
// dataset failing never aborts the others.
func (r *Recommender) BatchGenerateMappings(datasets []Dataset) []DatasetResult {
	results := make([]DatasetResult, 0, len(datasets))
	for _, ds := range datasets {
		recs, err := r.GenerateMappings(ds.Records)
		if err != nil {
			logger.Warnf("mapping analysis of dataset %s failed: %v", ds.Name, err)
		}
		results = append(results, DatasetResult{Name: ds.Name, Recommendations: recs, Err: err})
	}
	return results
}

// --- helpers ---

func populatedFields(samples []models.Row) []string {
	seen := make(map[string]bool)
	for _, row := range samples {
		for field, v := range row {
			if !v.IsNull() && strings.TrimSpace(v.Text()) != "" {
				seen[field] = true
			}
		}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func firstPopulated(field string, samples []models.Row) (models.Value, bool) {
	for _, row := range samples {
		if v, ok := row[field]; ok && !v.IsNull() && strings.TrimSpace(v.Text()) != "" {
			return v, true
		}
	}
	return models.Null(), false
}

func normalizeField(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	return s
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func isContactField(f string) bool {
	n := strings.ToLower(f)
	for _, kw := range []string{"phone", "mobile", "tel", "email", "address", "postcode", "contact"} {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}

func isMedicalField(f string) bool {
	n := strings.ToLower(f)
	for _, kw := range []string{"medication", "drug", "allerg", "diagnos", "condition", "prescri"} {
		if strings.Contains(n, kw) {
			return true
		}
	}
	return false
}

var (
	numericFormat  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	dateFormat     = regexp.MustCompile(`^(\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})`)
	emailFormat    = regexp.MustCompile(`^[^\s@]+@[^\s@]+$`)
	phoneFormat    = regexp.MustCompile(`^\+?[\d\s()-]{7,}$`)
	postcodeFormat = regexp.MustCompile(`(?i)^[a-z]{1,2}\d[a-z\d]?\s?\d[a-z]{2}$`)
)

// inferFormat buckets a raw value into a coarse format class used for
// the consistency score.
func inferFormat(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case dateFormat.MatchString(s):
		return "date"
	case numericFormat.MatchString(s):
		return "numeric"
	case emailFormat.MatchString(s):
		return "email"
	case postcodeFormat.MatchString(s):
		return "postcode"
	case phoneFormat.MatchString(s):
		return "phone"
	case s == strings.ToUpper(s):
		return "upper"
	case s == strings.ToLower(s):
		return "lower"
	default:
		return "mixed"
	}
}

func transformationLogic(hint string) string {
	switch hint {
	case "title_case":
		return "capitalize each word of the value"
	case "uk_date":
		return "parse day-first UK date strings into ISO dates"
	case "uk_phone":
		return "normalize UK phone numbers to +44 E.164 form"
	case "postcode":
		return "uppercase and re-space UK postcodes"
	case "nhs_number":
		return "strip separators and verify the NHS mod-11 check digit"
	case "medication_parse":
		return "split free-text medication into name, dose and frequency"
	case "trim":
		return "trim surrounding whitespace"
	case "lowercase":
		return "lowercase the value"
	default:
		return ""
	}
}

func displayName(hint string) string {
	if hint == "" {
		return "identity"
	}
	return strings.ReplaceAll(hint, "_", " ")
}

func validationRulesFor(target string) []string {
	switch target {
	case "nhs_number":
		return []string{"required", "nhs_number"}
	case "email_address":
		return []string{"email"}
	case "phone_number":
		return []string{"phone"}
	case "first_name", "last_name", "date_of_birth", "patient_id":
		return []string{"required"}
	default:
		return nil
	}
}
