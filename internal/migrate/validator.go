package migrate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/caredata/migrator/pkg/models"
)

// ValidationResult aggregates every rule violation found on one
// record, formatted "{column}: {message}".
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Validator checks transformed rows against a table's declared rules.
type Validator struct {
	rules []models.ValidationRule
}

func NewValidator(rules []models.ValidationRule) *Validator {
	return &Validator{rules: rules}
}

// Validate runs every rule and collects all violations, not just the
// first. A record with any violation is excluded from the batch write.
func (v *Validator) Validate(row models.Row) ValidationResult {
	result := ValidationResult{IsValid: true}

	for _, rule := range v.rules {
		val := row[rule.Column]
		if ok, msg := checkRule(rule, val); !ok {
			result.IsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", rule.Column, msg))
		}
	}
	return result
}

func checkRule(rule models.ValidationRule, val models.Value) (bool, string) {
	// Format rules only judge values that are present; enforcing
	// presence is the required rule's job.
	if val.IsNull() && rule.Kind != models.ValidationRequired && rule.Kind != models.ValidationCustom {
		return true, ""
	}
	switch rule.Kind {
	case models.ValidationRequired:
		if strings.TrimSpace(val.Text()) == "" {
			return false, message(rule, "value is required")
		}
	case models.ValidationNHSNumber:
		if !validNHSNumber(val.Text()) {
			return false, message(rule, "invalid NHS number")
		}
	case models.ValidationEmail:
		if !validEmail(val.Text()) {
			return false, message(rule, "invalid email address")
		}
	case models.ValidationPhone:
		if !validUKPhone(val.Text()) {
			return false, message(rule, "invalid UK phone number")
		}
	case models.ValidationCustom:
		if rule.Custom != nil && !rule.Custom(val) {
			return false, message(rule, "custom validation failed")
		}
	}
	return true, ""
}

func message(rule models.ValidationRule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fallback
}

var digitsOnly = regexp.MustCompile(`^\d{10}$`)

// validNHSNumber implements the NHS mod-11 check: the 10th digit must
// equal 11 minus the weighted sum (weights 10..2) of the first nine
// digits mod 11, where a remainder of 0 maps to check digit 0 and a
// computed value of 10 is always invalid.
func validNHSNumber(s string) bool {
	if !digitsOnly.MatchString(s) {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(s[i]-'0') * (10 - i)
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	if check == 10 {
		return false
	}
	return check == int(s[9]-'0')
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

var ukPhonePattern = regexp.MustCompile(`^(\+44\d{10}|0\d{10})$`)

// validUKPhone accepts +44 followed by ten digits or a leading 0
// followed by ten digits. Other country codes are rejected.
func validUKPhone(s string) bool {
	return ukPhonePattern.MatchString(s)
}
