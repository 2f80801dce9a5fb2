// Package recommend infers source->target field mappings from sampled
// records and learns from reviewer feedback.
package recommend

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/caredata/migrator/pkg/models"
)

const (
	confidenceFloor = 0.1
	confidenceCeil  = 1.0
	acceptStep      = 0.05
	rejectStep      = 0.1
	learnedStart    = 0.7
)

// Store owns the mutable pattern library and the semantic vocabulary.
// All mutation goes through the store's lock so concurrent feedback
// cannot lose confidence updates. The store itself is in-memory;
// callers persist snapshots if learning must survive restarts.
type Store struct {
	mu        sync.Mutex
	patterns  []models.FieldPattern
	semantics map[string]models.SemanticAnalysis
	compiled  map[string]*regexp.Regexp
}

// NewStore seeds a store with the built-in healthcare pattern library
// and semantic vocabulary.
func NewStore() *Store {
	s := &Store{
		patterns:  defaultPatterns(),
		semantics: defaultSemantics(),
		compiled:  make(map[string]*regexp.Regexp),
	}
	return s
}

func (s *Store) regex(pattern string) *regexp.Regexp {
	if re, ok := s.compiled[pattern]; ok {
		return re
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(pattern))
	}
	s.compiled[pattern] = re
	return re
}

// BestMatch returns the single highest-confidence library pattern
// matching the field name, or false when nothing matches.
func (s *Store) BestMatch(fieldName string) (models.FieldPattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestMatchLocked(fieldName)
}

func (s *Store) bestMatchLocked(fieldName string) (models.FieldPattern, bool) {
	var best models.FieldPattern
	found := false
	for _, p := range s.patterns {
		if !s.regex(p.Pattern).MatchString(fieldName) {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best = p
			found = true
		}
	}
	return best, found
}

// Matches returns every matching pattern ordered as in the library,
// used for alternative target suggestions.
func (s *Store) Matches(fieldName string) []models.FieldPattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FieldPattern
	for _, p := range s.patterns {
		if s.regex(p.Pattern).MatchString(fieldName) {
			out = append(out, p)
		}
	}
	return out
}

// Semantic returns the vocabulary entry for a target field.
func (s *Store) Semantic(targetField string) (models.SemanticAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.semantics[targetField]
	return sem, ok
}

// SemanticTargets returns the vocabulary's target fields in sorted
// order for the keyword fallback.
func (s *Store) SemanticTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.semantics))
	for k := range s.semantics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ApplyFeedback adjusts the pattern that produced a recommendation.
// Acceptance nudges its confidence up, rejection pushes it down, and a
// rejection carrying an alternative target also plants an exact-match
// pattern so identical field names map directly next time. Confidence
// stays clamped to [0.1, 1.0].
func (s *Store) ApplyFeedback(fb models.MappingFeedback) error {
	if fb.SourceField == "" {
		return fmt.Errorf("feedback %s has no source field", fb.MappingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.bestMatchIndexLocked(fb.SourceField, fb.OriginalRecommendation)
	if idx >= 0 {
		if fb.Accepted {
			s.patterns[idx].Confidence = clamp(s.patterns[idx].Confidence + acceptStep)
		} else {
			s.patterns[idx].Confidence = clamp(s.patterns[idx].Confidence - rejectStep)
		}
	}

	if !fb.Accepted && fb.UserSelectedTarget != "" {
		s.patterns = append(s.patterns, models.FieldPattern{
			Pattern:     "^" + regexp.QuoteMeta(strings.ToLower(fb.SourceField)) + "$",
			TargetField: fb.UserSelectedTarget,
			Confidence:  learnedStart,
			Context:     "learned from reviewer feedback",
		})
	}
	return nil
}

func (s *Store) bestMatchIndexLocked(fieldName string, orig *models.MappingRecommendation) int {
	best := -1
	for i, p := range s.patterns {
		if !s.regex(p.Pattern).MatchString(fieldName) {
			continue
		}
		if orig != nil && orig.TargetField != "" && p.TargetField != orig.TargetField {
			continue
		}
		if best < 0 || p.Confidence > s.patterns[best].Confidence {
			best = i
		}
	}
	return best
}

// snapshot is the serialized shape of the learnable state.
type snapshot struct {
	Patterns  []models.FieldPattern              `json:"patterns"`
	Semantics map[string]models.SemanticAnalysis `json:"semantics"`
}

// Snapshot serializes the current pattern library and vocabulary.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(snapshot{Patterns: s.patterns, Semantics: s.semantics}, "", "  ")
}

// Restore replaces the store's state with a previously taken snapshot.
func (s *Store) Restore(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("restore pattern snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = snap.Patterns
	if snap.Semantics != nil {
		s.semantics = snap.Semantics
	}
	s.compiled = make(map[string]*regexp.Regexp)
	return nil
}

func clamp(v float64) float64 {
	if v < confidenceFloor {
		return confidenceFloor
	}
	if v > confidenceCeil {
		return confidenceCeil
	}
	return v
}
