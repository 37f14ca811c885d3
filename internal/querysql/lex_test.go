package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeIsLossless(t *testing.T) {
	inputs := []string{
		"SELECT p_id FROM Post WHERE p_private = 0",
		"-- comment\nSELECT 'it''s' AS \"quoted \"\"x\"\"\" /* block */ FROM t;",
		"unterminated 'string",
		"",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Join(Tokenize(in)))
	}
}

func TestTokenizeKinds(t *testing.T) {
	toks := Significant(Tokenize(`SELECT "Odd Name", 'lit', 42 FROM t`))
	require.Len(t, toks, 8)

	assert.Equal(t, Ident, toks[0].Kind)
	assert.Equal(t, QuotedIdent, toks[1].Kind)
	assert.Equal(t, "Odd Name", toks[1].Name())
	assert.Equal(t, Symbol, toks[2].Kind)
	assert.Equal(t, StringLit, toks[3].Kind)
	assert.Equal(t, Number, toks[5].Kind)
	assert.True(t, toks[6].IsKeyword("from"))
}

func TestTokenizeTracksLines(t *testing.T) {
	toks := Significant(Tokenize("a\n\nb\n-- c\nd"))
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 3, toks[1].Line)
	assert.Equal(t, 5, toks[2].Line)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Post_u7"`, QuoteIdent("Post_u7"))
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}
