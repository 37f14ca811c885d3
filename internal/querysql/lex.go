package querysql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a lexical token.
type Kind int

const (
	// Space is a run of whitespace.
	Space Kind = iota
	// Comment is a "--" line comment or a "/* */" block comment.
	Comment
	// Ident is a bare identifier or keyword.
	Ident
	// QuotedIdent is a "double-quoted" or `backquoted` identifier.
	QuotedIdent
	// StringLit is a 'single-quoted' string literal.
	StringLit
	// Number is a numeric literal.
	Number
	// Symbol is any other single character (operators, punctuation).
	Symbol
)

// Token is one lexical unit of SQL text. Concatenating the Text of every
// token returned by Tokenize reproduces the input exactly.
type Token struct {
	Kind Kind
	Text string
	Line int
}

// Name returns the identifier a token denotes, with quotes removed.
// Returns "" for non-identifier tokens.
func (t Token) Name() string {
	switch t.Kind {
	case Ident:
		return t.Text
	case QuotedIdent:
		if len(t.Text) >= 2 {
			inner := t.Text[1 : len(t.Text)-1]
			q := t.Text[:1]
			return strings.ReplaceAll(inner, q+q, q)
		}
	}
	return ""
}

// IsKeyword reports whether the token is the bare keyword kw (case-insensitive).
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == Ident && strings.EqualFold(t.Text, kw)
}

// IsSymbol reports whether the token is the symbol s.
func (t Token) IsSymbol(s string) bool {
	return t.Kind == Symbol && t.Text == s
}

// significant reports whether the token carries meaning for the parser.
func (t Token) significant() bool {
	return t.Kind != Space && t.Kind != Comment
}

// Tokenize splits SQL text into tokens. Unterminated strings, quoted
// identifiers and block comments run to the end of the input.
func Tokenize(src string) []Token {
	var toks []Token
	line := 1
	i := 0
	for i < len(src) {
		start := i
		startLine := line
		r, size := utf8.DecodeRuneInString(src[i:])
		var kind Kind

		switch {
		case unicode.IsSpace(r):
			kind = Space
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !unicode.IsSpace(r) {
					break
				}
				i += size
			}
		case strings.HasPrefix(src[i:], "--"):
			kind = Comment
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				i = len(src)
			} else {
				i += end
			}
		case strings.HasPrefix(src[i:], "/*"):
			kind = Comment
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
			} else {
				i += end + 4
			}
		case r == '\'':
			kind = StringLit
			i = scanQuoted(src, i, '\'')
		case r == '"' || r == '`':
			kind = QuotedIdent
			i = scanQuoted(src, i, byte(r))
		case r == '_' || unicode.IsLetter(r):
			kind = Ident
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if r != '_' && r != '$' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
		case unicode.IsDigit(r):
			kind = Number
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
		default:
			kind = Symbol
			i += size
		}

		text := src[start:i]
		line += strings.Count(text, "\n")
		toks = append(toks, Token{Kind: kind, Text: text, Line: startLine})
	}
	return toks
}

// scanQuoted returns the index just past a quoted run starting at i.
// A doubled quote character inside the run is an escaped quote.
func scanQuoted(src string, i int, q byte) int {
	i++
	for i < len(src) {
		if src[i] == q {
			if i+1 < len(src) && src[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(src)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Join reassembles tokens into text.
func Join(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Significant returns the tokens that are neither whitespace nor comments.
func Significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.significant() {
			out = append(out, t)
		}
	}
	return out
}

// QuoteIdent quotes a relation or column name for inlining into SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
