package recovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WellFormed(t *testing.T) {
	v, err := Parse(`{"headers": ["a"], "rows": [["1", "2"]]}`)
	require.NoError(t, err)
	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, obj["headers"])
}

func TestParse_FencedBlock(t *testing.T) {
	input := "Here is the analysis you asked for:\n```json\n{\"x\": 2}\n```\nLet me know if you need more."
	v, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(2)}, v)
}

func TestParse_FencedBlockNoLanguage(t *testing.T) {
	v, err := Parse("```\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, v)
}

func TestParse_TrailingComma(t *testing.T) {
	v, err := Parse(`{"a": 1,}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
}

func TestParse_TrailingCommaInArray(t *testing.T) {
	v, err := Parse(`{"items": ["x", "y",]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"x", "y"}}, v)
}

func TestParse_MissingCommaBetweenLines(t *testing.T) {
	input := "{\n  \"a\": 1\n  \"b\": 2\n}"
	v, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, v)
}

func TestParse_MissingCommaAfterClosingBrace(t *testing.T) {
	input := "{\"rows\": [\n  {\"id\": 1}\n  {\"id\": 2}\n]}"
	v, err := Parse(input)
	require.NoError(t, err)
	rows := v.(map[string]any)["rows"].([]any)
	assert.Len(t, rows, 2)
}

func TestParse_LineComments(t *testing.T) {
	input := "{\n  // primary asset\n  \"asset\": \"ledger\"\n}"
	v, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, "ledger", v.(map[string]any)["asset"])
}

func TestParse_BlockComments(t *testing.T) {
	v, err := Parse(`{"a": /* inline note */ 1}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.(map[string]any)["a"])
}

func TestParse_CommentMarkersInsideStrings(t *testing.T) {
	v, err := Parse(`{"url": "https://example.com/path", "note": "a /* literal */ marker"}`)
	require.NoError(t, err)
	obj := v.(map[string]any)
	assert.Equal(t, "https://example.com/path", obj["url"])
	assert.Equal(t, "a /* literal */ marker", obj["note"])
}

func TestParse_SingleQuoted(t *testing.T) {
	v, err := Parse(`{'items': ['spoofing', 'tampering']}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"spoofing", "tampering"}}, v)
}

func TestParse_SingleQuotesNotConvertedWhenDoubleDominates(t *testing.T) {
	v, err := Parse(`{"note": "the attacker's session"}`)
	require.NoError(t, err)
	assert.Equal(t, "the attacker's session", v.(map[string]any)["note"])
}

func TestParse_SurroundingProse(t *testing.T) {
	input := `Sure! The threat table follows. {"headers": ["t"], "rows": []} Hope that helps.`
	v, err := Parse(input)
	require.NoError(t, err)
	assert.Contains(t, v.(map[string]any), "headers")
}

func TestParse_BalancedExtraction(t *testing.T) {
	// The trailing brace in prose must not confuse the extractor.
	input := `prefix {"a": {"b": "}"}} suffix }`
	v, err := Parse(input)
	require.NoError(t, err)
	inner := v.(map[string]any)["a"].(map[string]any)
	assert.Equal(t, "}", inner["b"])
}

func TestParse_Unrecoverable(t *testing.T) {
	_, err := Parse("no structured data here at all")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.NotEmpty(t, perr.Window)
}

func TestParse_UnrecoverableWindowLocatesOffset(t *testing.T) {
	_, err := Parse(`{"a": <<<}`)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Window, "<<<")
}

func TestParse_EmptyInput(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParse_TopLevelArray(t *testing.T) {
	v, err := Parse("```json\n[\"one\", \"two\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []any{"one", "two"}, v)
}

func TestParse_CombinedDefects(t *testing.T) {
	input := "```json\n{\n  // findings\n  \"items\": [\n    \"a\",\n    \"b\",\n  ]\n}\n```"
	v, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{"a", "b"}}, v)
}
