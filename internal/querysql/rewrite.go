package querysql

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// Statement is one ";"-terminated statement of a recipe.
type Statement struct {
	Text string
	Line int // line of the first significant token
}

// Split divides recipe text into statements on top-level semicolons.
// Statements consisting only of whitespace and comments are dropped.
func Split(text string) []Statement {
	var (
		stmts []Statement
		cur   []Token
	)
	flush := func() {
		sig := Significant(cur)
		if len(sig) > 0 {
			stmts = append(stmts, Statement{
				Text: strings.TrimSpace(Join(trimComments(cur))),
				Line: sig[0].Line,
			})
		}
		cur = cur[:0]
	}
	for _, t := range Tokenize(text) {
		if t.IsSymbol(";") {
			flush()
			continue
		}
		cur = append(cur, t)
	}
	flush()
	return stmts
}

// trimComments drops leading and trailing comment and whitespace tokens.
func trimComments(toks []Token) []Token {
	start, end := 0, len(toks)
	for start < end && !toks[start].significant() {
		start++
	}
	for end > start && !toks[end-1].significant() {
		end--
	}
	return toks[start:end]
}

// clauseKeywords end an alias position after a relation reference.
var clauseKeywords = map[string]bool{
	"WHERE": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "CROSS": true, "OUTER": true, "NATURAL": true, "ON": true,
	"USING": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "SELECT": true,
	"FROM": true, "WINDOW": true, "OFFSET": true, "AS": true,
}

func isClauseKeyword(t Token) bool {
	return t.Kind == Ident && clauseKeywords[strings.ToUpper(t.Text)]
}

// relationSite is a relation reference found in a FROM or JOIN position.
type relationSite struct {
	tok      int  // index into the full token slice
	hasAlias bool // an explicit alias follows the reference
}

// findRelations locates relation references in FROM and JOIN positions,
// including comma-separated FROM lists. Subqueries are walked like any
// other tokens, so their references are found too.
func findRelations(toks []Token) []relationSite {
	// Indices of significant tokens into toks.
	var sig []int
	for i, t := range toks {
		if t.significant() {
			sig = append(sig, i)
		}
	}
	at := func(k int) (Token, bool) {
		if k < 0 || k >= len(sig) {
			return Token{}, false
		}
		return toks[sig[k]], true
	}

	var sites []relationSite
	depth := 0
	inFrom := make(map[int]bool) // paren depths currently reading a FROM list
	expect := false

	for k := 0; k < len(sig); k++ {
		t := toks[sig[k]]
		switch {
		case t.IsSymbol("("):
			depth++
			expect = false
			continue
		case t.IsSymbol(")"):
			delete(inFrom, depth)
			depth--
			continue
		case t.IsKeyword("FROM"):
			inFrom[depth] = true
			expect = true
			continue
		case t.IsKeyword("JOIN"):
			expect = true
			continue
		case t.IsSymbol(",") && inFrom[depth]:
			expect = true
			continue
		case isClauseKeyword(t):
			switch strings.ToUpper(t.Text) {
			case "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "OUTER", "NATURAL", "ON", "USING", "AS":
			default:
				delete(inFrom, depth)
			}
			expect = false
			continue
		}

		if !expect {
			continue
		}
		expect = false
		if t.Kind != Ident && t.Kind != QuotedIdent {
			continue
		}
		// schema-qualified names (main.Post) are left untouched
		if next, ok := at(k + 1); ok && next.IsSymbol(".") {
			continue
		}

		site := relationSite{tok: sig[k]}
		if next, ok := at(k + 1); ok {
			switch {
			case next.IsKeyword("AS"):
				site.hasAlias = true
			case (next.Kind == Ident || next.Kind == QuotedIdent) && !isClauseKeyword(next):
				site.hasAlias = true
			}
		}
		sites = append(sites, site)
	}
	return sites
}

// Relations returns the distinct relation names referenced by sql, in
// order of first appearance.
func Relations(sql string) []string {
	toks := Tokenize(sql)
	seen := make(map[string]bool)
	var out []string
	for _, s := range findRelations(toks) {
		name := toks[s.tok].Name()
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

// RenameRelations rewrites relation references through rename. A renamed
// reference without an alias is aliased to its original name so column
// qualifiers such as Post.p_id keep resolving.
func RenameRelations(sql string, rename func(name string) (string, bool)) string {
	toks := Tokenize(sql)
	for _, s := range findRelations(toks) {
		orig := toks[s.tok].Name()
		to, ok := rename(orig)
		if !ok {
			continue
		}
		text := QuoteIdent(to)
		if !s.hasAlias {
			text += " AS " + QuoteIdent(orig)
		}
		toks[s.tok].Text = text
	}
	return Join(toks)
}

// ContextRefs returns the attribute names referenced as ctx.<attr>.
func ContextRefs(expr string) []string {
	var refs []string
	_, _ = BindContext(expr, func(attr string) (string, error) {
		refs = append(refs, attr)
		return "NULL", nil
	})
	return refs
}

// BindContext replaces every ctx.<attr> reference in expr with the SQL
// returned by bind.
func BindContext(expr string, bind func(attr string) (string, error)) (string, error) {
	toks := Tokenize(expr)
	var b strings.Builder
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.IsKeyword("ctx") {
			dot := nextSignificant(toks, i+1)
			if dot >= 0 && toks[dot].IsSymbol(".") {
				attr := nextSignificant(toks, dot+1)
				if attr >= 0 && (toks[attr].Kind == Ident || toks[attr].Kind == QuotedIdent) {
					sql, err := bind(toks[attr].Name())
					if err != nil {
						return "", err
					}
					b.WriteString(sql)
					i = attr
					continue
				}
			}
		}
		b.WriteString(t.Text)
	}
	return b.String(), nil
}

func nextSignificant(toks []Token, from int) int {
	for i := from; i < len(toks); i++ {
		if toks[i].significant() {
			return i
		}
	}
	return -1
}

// StripWhere removes a leading WHERE keyword from a policy predicate.
func StripWhere(pred string) string {
	toks := trimComments(Tokenize(pred))
	if len(toks) > 0 && toks[0].IsKeyword("WHERE") {
		toks = trimComments(toks[1:])
	}
	return Join(toks)
}

// Normalize renders sql in a canonical form for comparison: comments
// dropped, whitespace collapsed, bare identifiers and keywords lower-cased
// (SQLite treats them case-insensitively) and text NFC normalized.
func Normalize(sql string) string {
	sig := Significant(Tokenize(sql))
	parts := make([]string, len(sig))
	for i, t := range sig {
		if t.Kind == Ident {
			parts[i] = strings.ToLower(t.Text)
		} else {
			parts[i] = t.Text
		}
	}
	return norm.NFC.String(strings.Join(parts, " "))
}

// Fingerprint hashes the normalized form of sql.
func Fingerprint(sql string) uint64 {
	return xxhash.Sum64String(Normalize(sql))
}

// ShortFingerprint renders the first 8 hex digits of Fingerprint.
func ShortFingerprint(sql string) string {
	return fmt.Sprintf("%016x", Fingerprint(sql))[:8]
}
