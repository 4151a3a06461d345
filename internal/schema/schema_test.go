package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanpaul/secexpert/internal/apperr"
)

func TestValidatorAcceptsAndRejects(t *testing.T) {
	v := NewValidator()
	s := map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	assert.NoError(t, v.Validate(s, []byte(`{"name":"x"}`)))

	err := v.Validate(s, []byte(`{"name":3}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")

	err = v.Validate(s, []byte(`{`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestValidatorCachesCompiledSchema(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Validate(PatternSeedSchema, []byte(`{"patterns":[]}`)))
	require.NoError(t, v.Validate(PatternSeedSchema, []byte(`{"patterns":[]}`)))

	n := 0
	v.cache.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 1, n)
}

func TestValidatorBadSchema(t *testing.T) {
	err := NewValidator().Validate(`{"type": 12}`, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schema definition")
}

func TestDumpErrorsTruncates(t *testing.T) {
	assert.Equal(t, "a", dumpErrors([]string{"a"}))
	assert.Equal(t, "a\n- b\n- c\n... and 2 more", dumpErrors([]string{"a", "b", "c", "d", "e"}))
}

func TestParsePatternSeed(t *testing.T) {
	got, err := ParsePatternSeed([]byte(`{"patterns":[
		{"name":"Edge","keywords":["nginx","TLS"],"common_risks":["Weak Ciphers: legacy suites"]}
	]}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Edge", got[0].Name)
	assert.Equal(t, []string{"nginx", "TLS"}, []string(got[0].Keywords))
	assert.Equal(t, []string{"Weak Ciphers: legacy suites"}, []string(got[0].CommonRisks))
	assert.NotNil(t, got[0].RecommendedSolutions)
	assert.Empty(t, got[0].RecommendedSolutions)
}

func TestParsePatternSeedRejects(t *testing.T) {
	cases := map[string]string{
		"missing keywords": `{"patterns":[{"name":"x"}]}`,
		"empty keywords":   `{"patterns":[{"name":"x","keywords":[]}]}`,
		"unknown field":    `{"patterns":[{"name":"x","keywords":["a"],"score":3}]}`,
		"duplicate name":   `{"patterns":[{"name":"x","keywords":["a"]},{"name":"x","keywords":["b"]}]}`,
		"not an object":    `[]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePatternSeed([]byte(doc))
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindConfiguration))
		})
	}
}

func TestLoadPatternSeed(t *testing.T) {
	builtin, err := LoadPatternSeed("")
	require.NoError(t, err)
	assert.NotEmpty(t, builtin)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"patterns":[{"name":"Queue","keywords":["kafka"]}]}`), 0o644))
	got, err := LoadPatternSeed(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Queue", got[0].Name)

	_, err = LoadPatternSeed(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
