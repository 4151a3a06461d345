package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gorm.io/datatypes"

	"github.com/jeanpaul/secexpert/internal/apperr"
	"github.com/jeanpaul/secexpert/internal/store"
)

// PatternSeedSchema describes a pattern seed file.
const PatternSeedSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["patterns"],
  "additionalProperties": false,
  "properties": {
    "patterns": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "keywords"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "keywords": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "common_risks": {"type": "array", "items": {"type": "string"}},
          "recommended_solutions": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

//go:embed default_patterns.json
var defaultPatterns []byte

type patternSeed struct {
	Patterns []struct {
		Name                 string   `json:"name"`
		Keywords             []string `json:"keywords"`
		CommonRisks          []string `json:"common_risks"`
		RecommendedSolutions []string `json:"recommended_solutions"`
	} `json:"patterns"`
}

var seedValidator = NewValidator()

// ParsePatternSeed validates data against PatternSeedSchema and converts it
// to store rows. Duplicate names are rejected.
func ParsePatternSeed(data []byte) ([]store.AnalysisPattern, error) {
	if err := seedValidator.Validate(PatternSeedSchema, data); err != nil {
		return nil, apperr.Configuration("parse pattern seed", err)
	}
	var seed patternSeed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, apperr.Configuration("parse pattern seed", err)
	}

	seen := make(map[string]bool, len(seed.Patterns))
	out := make([]store.AnalysisPattern, 0, len(seed.Patterns))
	for _, p := range seed.Patterns {
		if seen[p.Name] {
			return nil, apperr.Configuration("parse pattern seed", fmt.Errorf("duplicate pattern %q", p.Name))
		}
		seen[p.Name] = true
		out = append(out, store.AnalysisPattern{
			Name:                 p.Name,
			Keywords:             datatypes.JSONSlice[string](p.Keywords),
			CommonRisks:          datatypes.JSONSlice[string](orEmpty(p.CommonRisks)),
			RecommendedSolutions: datatypes.JSONSlice[string](orEmpty(p.RecommendedSolutions)),
		})
	}
	return out, nil
}

// LoadPatternSeed reads a seed file. An empty path yields the built-in set.
func LoadPatternSeed(path string) ([]store.AnalysisPattern, error) {
	if path == "" {
		return ParsePatternSeed(defaultPatterns)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configuration("read pattern seed", err)
	}
	return ParsePatternSeed(data)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
