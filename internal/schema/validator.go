// Package schema validates JSON documents such as pattern seed files.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// maxReported caps how many violations end up in one error.
const maxReported = 3

// Validator compiles schemas once and reuses them.
type Validator struct {
	cache sync.Map // schema JSON -> *gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks doc against schemaData, which may be a JSON string, raw
// bytes or any value that marshals to a schema.
func (v *Validator) Validate(schemaData any, doc []byte) error {
	compiled, err := v.compile(schemaData)
	if err != nil {
		return fmt.Errorf("invalid schema definition: %w", err)
	}

	result, err := compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("document is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("schema validation failed:\n- %s", dumpErrors(errs))
}

func (v *Validator) compile(schemaData any) (*gojsonschema.Schema, error) {
	var raw []byte
	switch s := schemaData.(type) {
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		b, err := json.Marshal(schemaData)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	key := string(raw)

	if val, ok := v.cache.Load(key); ok {
		return val.(*gojsonschema.Schema), nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	v.cache.Store(key, compiled)
	return compiled, nil
}

func dumpErrors(errs []string) string {
	if len(errs) <= maxReported {
		return strings.Join(errs, "\n- ")
	}
	return strings.Join(errs[:maxReported], "\n- ") + fmt.Sprintf("\n... and %d more", len(errs)-maxReported)
}
