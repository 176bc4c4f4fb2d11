package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy Strategy
		want     map[string]any
	}{
		{
			name:     "clean json",
			raw:      `{"name": "Ada Lovelace"}`,
			strategy: StrategyVerbatim,
			want:     map[string]any{"name": "Ada Lovelace"},
		},
		{
			name:     "prose around the object",
			raw:      "Sure! Here is the result:\n{\"name\": \"Ada\", \"skills\": [\"go\"]}\nLet me know if you need more.",
			strategy: StrategyVerbatim,
			want:     map[string]any{"name": "Ada", "skills": []any{"go"}},
		},
		{
			name:     "markdown fence",
			raw:      "```json\n{\"name\": \"Ada\"}\n```",
			strategy: StrategyVerbatim,
			want:     map[string]any{"name": "Ada"},
		},
		{
			name:     "unescaped inner quote",
			raw:      `{"name": "Jo"hn"}`,
			strategy: StrategySanitized,
			want:     map[string]any{"name": "John"},
		},
		{
			name:     "trailing commas",
			raw:      `{"skills": ["go", "sql",], "name": "Ada",}`,
			strategy: StrategySanitized,
			want:     map[string]any{"skills": []any{"go", "sql"}, "name": "Ada"},
		},
		{
			name:     "bare keys",
			raw:      `{name: "Ada", level: "senior"}`,
			strategy: StrategySanitized,
			want:     map[string]any{"name": "Ada", "level": "senior"},
		},
		{
			name:     "single quoted keys and values",
			raw:      `{'name': 'John Doe', 'email': 'j@x.io'}`,
			strategy: StrategySanitized,
			want:     map[string]any{"name": "John Doe", "email": "j@x.io"},
		},
		{
			name:     "bare key with single quoted value",
			raw:      `{name: 'John'}`,
			strategy: StrategySanitized,
			want:     map[string]any{"name": "John"},
		},
		{
			name:     "single quotes around apostrophes and double quotes",
			raw:      `{'summary': 'Jane's "core" team', 'skills': ['go', 'it\'s sql']}`,
			strategy: StrategySanitized,
			want:     map[string]any{"summary": `Jane's "core" team`, "skills": []any{"go", "it's sql"}},
		},
		{
			name:     "smart quotes",
			raw:      `{“name”: “Ada”}`,
			strategy: StrategySanitized,
			want:     map[string]any{"name": "Ada"},
		},
		{
			name:     "invalid escape",
			raw:      `{"path": "C:\data"}`,
			strategy: StrategySanitized,
			want:     map[string]any{"path": "C:data"},
		},
		{
			name:     "raw newline inside string",
			raw:      "{\"summary\": \"line one\nline two\"}",
			strategy: StrategySanitized,
			want:     map[string]any{"summary": "line one\nline two"},
		},
		{
			name:     "broken unicode escape",
			raw:      `{"name": "Ad\u12a"}`,
			strategy: StrategyAggressive,
			want:     map[string]any{"name": "Ad12a"},
		},
		{
			name:     "missing commas between lines",
			raw:      "{\n  \"name\": \"Ada\"\n  \"title\": \"Engineer\"\n}",
			strategy: StrategyLineRebuild,
			want:     map[string]any{"name": "Ada", "title": "Engineer"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, strategy)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no object", "I could not find a CV in this text."},
		{"array only", `["a", "b"]`},
		{"unbalanced bracket", `{"skills": [1, 2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, common.ErrParse))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Len(t, perr.Failures, 4)
			assert.Equal(t, tt.raw, perr.Raw)
		})
	}
}

func TestParse_FirstBalancedBlockWins(t *testing.T) {
	got, strategy, err := Parse(`{"a": "x {not a brace}"} trailing {"b": 2}`)
	require.NoError(t, err)
	assert.Equal(t, StrategyVerbatim, strategy)
	assert.Equal(t, map[string]any{"a": "x {not a brace}"}, got)
}

// Any reply that contains a valid object somewhere must parse.
func TestParse_ValidObjectAlwaysRecovered(t *testing.T) {
	prefixes := []string{"", "Here you go: ", "```json\n", "\n\n"}
	suffixes := []string{"", " Thanks!", "\n```", " {"}
	body := `{"name": "Grace Hopper", "experience": [{"title": "Rear Admiral"}], "n": 3, "ok": true}`
	for _, p := range prefixes {
		for _, s := range suffixes {
			got, _, err := Parse(p + body + s)
			require.NoError(t, err, "prefix=%q suffix=%q", p, s)
			assert.Equal(t, "Grace Hopper", got["name"])
		}
	}
}
