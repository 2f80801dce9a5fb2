package migrate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caredata/migrator/pkg/models"
)

// TransformFunc is a pure value-to-value mapping. Implementations must
// be total over their declared input domain and perform no I/O.
type TransformFunc func(models.Value) (models.Value, error)

// transformRegistry resolves the names TransformationRule.Transform
// may carry. Keeping transformations behind names keeps plan files
// plain serializable data.
var transformRegistry = map[string]TransformFunc{
	"identity":         transformIdentity,
	"trim":             transformTrim,
	"lowercase":        transformLowercase,
	"uppercase":        transformUppercase,
	"title_case":       transformTitleCase,
	"uk_date":          transformUKDate,
	"uk_phone":         transformUKPhone,
	"postcode":         transformPostcode,
	"nhs_number":       transformNHSNumber,
	"medication_parse": transformMedication,
}

// ResolveTransform looks a transformation up by name. The empty name
// resolves to identity.
func ResolveTransform(name string) (TransformFunc, error) {
	if name == "" {
		return transformIdentity, nil
	}
	fn, ok := transformRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown transformation %q", name)
	}
	return fn, nil
}

func transformIdentity(v models.Value) (models.Value, error) { return v, nil }

func transformTrim(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	return models.StringValue(strings.TrimSpace(v.Text())), nil
}

func transformLowercase(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	return models.StringValue(strings.ToLower(strings.TrimSpace(v.Text()))), nil
}

func transformUppercase(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	return models.StringValue(strings.ToUpper(strings.TrimSpace(v.Text()))), nil
}

// transformTitleCase capitalizes each word: "john smith" -> "John Smith".
func transformTitleCase(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	words := strings.Fields(strings.ToLower(strings.TrimSpace(v.Text())))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return models.StringValue(strings.Join(words, " ")), nil
}

var ukDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
}

// transformUKDate parses day-first UK date strings into a date value.
func transformUKDate(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	if t, ok := v.Time(); ok {
		return models.DateValue(t), nil
	}
	s := strings.TrimSpace(v.Text())
	for _, layout := range ukDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateValue(t), nil
		}
	}
	return models.Null(), fmt.Errorf("unable to parse UK date %q", s)
}

var phoneStrip = regexp.MustCompile(`[\s\-().]`)

// transformUKPhone normalizes a UK phone number to +44 E.164 form.
func transformUKPhone(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	s := phoneStrip.ReplaceAllString(v.Text(), "")
	switch {
	case strings.HasPrefix(s, "+44") && len(s) == 13:
		return models.StringValue(s), nil
	case strings.HasPrefix(s, "0044") && len(s) == 14:
		return models.StringValue("+44" + s[4:]), nil
	case strings.HasPrefix(s, "44") && len(s) == 12:
		return models.StringValue("+" + s), nil
	case strings.HasPrefix(s, "0") && len(s) == 11:
		return models.StringValue("+44" + s[1:]), nil
	default:
		return models.Null(), fmt.Errorf("unrecognized UK phone number %q", v.Text())
	}
}

var postcodePattern = regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?\d[A-Z]{2}$`)

// transformPostcode normalizes a UK postcode to canonical
// "OUTWARD INWARD" form, e.g. "sw1a1aa" -> "SW1A 1AA".
func transformPostcode(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v.Text()), " ", ""))
	if !postcodePattern.MatchString(s) {
		return models.Null(), fmt.Errorf("invalid UK postcode %q", v.Text())
	}
	return models.StringValue(s[:len(s)-3] + " " + s[len(s)-3:]), nil
}

// transformNHSNumber strips separators and checks the mod-11 digit.
// Valid numbers come out as bare 10-digit strings.
func transformNHSNumber(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	s := strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(v.Text()), " ", ""), "-", "")
	if !validNHSNumber(s) {
		return models.Null(), fmt.Errorf("invalid NHS number %q", v.Text())
	}
	return models.StringValue(s), nil
}

var medicationPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z \-]*?)\s+(\d+(?:\.\d+)?\s?(?:mg|mcg|g|ml|units))\s*(.*)$`)

// transformMedication splits free-text medication entries like
// "Atorvastatin 20mg once daily" into a structured JSON document with
// name, dose and frequency.
func transformMedication(v models.Value) (models.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	m := medicationPattern.FindStringSubmatch(strings.TrimSpace(v.Text()))
	if m == nil {
		return models.Null(), fmt.Errorf("unable to parse medication %q", v.Text())
	}
	doc := map[string]string{
		"name":      strings.TrimSpace(m[1]),
		"dose":      strings.ReplaceAll(m[2], " ", ""),
		"frequency": strings.TrimSpace(m[3]),
	}
	if doc["frequency"] == "" {
		doc["frequency"] = "as directed"
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return models.Null(), err
	}
	return models.StringValue(string(out)), nil
}
