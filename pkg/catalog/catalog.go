// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Load reads the pump dataset from path, validates it against the JSON schema
// at schemaPath, and parses it. Validation failures list every offending
// field so a bad dataset is caught at startup, not mid-conversation.
func Load(path, schemaPath string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	if schemaPath != "" {
		schemaData, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("read catalog schema: %w", err)
		}
		result, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(schemaData),
			gojsonschema.NewBytesLoader(data),
		)
		if err != nil {
			return nil, fmt.Errorf("validate catalog: %w", err)
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			return nil, fmt.Errorf("catalog failed schema validation: %s", strings.Join(msgs, "; "))
		}
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Pumps) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return &cat, nil
}

var numberPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// SafeNumber coerces a spec field that may be a number or a string like
// "2 x 10 m³/h" into a float. The string form yields its first numeric token.
func SafeNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		m := numberPattern.FindStringSubmatch(val)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Spec reads a numeric spec field through SafeNumber.
func (p Pump) Spec(key string) (float64, bool) {
	v, ok := p.Specs[key]
	if !ok {
		return 0, false
	}
	return SafeNumber(v)
}

var digitsPattern = regexp.MustCompile(`\d+`)

// FamilyKey normalizes a pump family for preference and exclusion lookups:
// uppercased with trailing size digits stripped ("MAGNA3" -> "MAGNA").
func (p Pump) FamilyKey() string {
	return strings.TrimSpace(digitsPattern.ReplaceAllString(strings.ToUpper(p.Family), ""))
}

// FindCompetitorEquivalent cross-references a competitor brand (and model, if
// known) against each pump's equivalents table. A brand+model hit wins over a
// brand-only hit.
func (c *Catalog) FindCompetitorEquivalent(brand, model string) (Pump, bool) {
	brandLower := strings.ToLower(brand)

	if model != "" {
		modelLower := strings.ToLower(model)
		for _, p := range c.Pumps {
			for k, v := range p.CompetitorEquivalents {
				if strings.ToLower(k) == brandLower && strings.Contains(strings.ToLower(v), modelLower) {
					return p, true
				}
			}
		}
	}

	for _, p := range c.Pumps {
		for k := range p.CompetitorEquivalents {
			if strings.ToLower(k) == brandLower {
				return p, true
			}
		}
	}
	return Pump{}, false
}

// MatchModelsInText scans free text for known model names and returns the
// matching entries, at most three. Exact model names are tried first, then a
// normalized comparison (lowercase, whitespace removed) so "scala2" still
// matches "SCALA2 3-45".
func (c *Catalog) MatchModelsInText(text string) []Pump {
	var matched []Pump
	seen := make(map[string]bool)
	normalizedText := strings.ReplaceAll(strings.ToLower(text), " ", "")

	for _, p := range c.Pumps {
		if seen[p.ID] {
			continue
		}
		if strings.Contains(text, p.Model) {
			seen[p.ID] = true
			matched = append(matched, p)
			continue
		}
		normalizedModel := strings.ReplaceAll(strings.ToLower(p.Model), " ", "")
		if strings.Contains(normalizedText, normalizedModel) {
			seen[p.ID] = true
			matched = append(matched, p)
		}
	}

	if len(matched) > 3 {
		matched = matched[:3]
	}
	return matched
}
