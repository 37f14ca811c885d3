package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/piazza/internal/ir"
	"github.com/roach88/piazza/internal/querysql"
)

// ContextRelationPrefix names the per-tenant context relations the engine
// creates. Recipes may not declare relations with this prefix.
const ContextRelationPrefix = "UserContext_"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column is one declared column of a base relation.
type Column struct {
	Name string
	Type string
}

// Table is a base relation declared with CREATE TABLE.
type Table struct {
	Name    string
	Columns []Column
	// Body is the parenthesised column list, reduced to what SQLite accepts.
	Body string
	Line int
}

// Definition is the normalized form used to detect conflicting redeclaration.
func (t Table) Definition() string {
	return querysql.Normalize(t.Body)
}

// ColumnNames returns the declared column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Query is a derived view over base relations and earlier queries.
type Query struct {
	Name      string
	SQL       string
	Relations []string
	Anonymous bool
	Line      int
}

// Definition is the normalized form used to detect conflicting redeclaration.
func (q Query) Definition() string {
	return querysql.Normalize(q.SQL)
}

// Recipe is a compiled recipe: base relations and queries in declaration order.
type Recipe struct {
	Tables  []Table
	Queries []Query
	Hash    string
}

// Table looks up a declared table by name (case-insensitive).
func (r *Recipe) Table(name string) (Table, bool) {
	for _, t := range r.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// CompileRecipe parses recipe text. Supported statements:
//
//	CREATE TABLE name (col type, ..., PRIMARY KEY (col));
//	QUERY name: SELECT ...;
//	name: SELECT ...;
//	SELECT ...;            -- named q_<fingerprint>
//
// A name declared twice in the same text must carry an identical definition.
func CompileRecipe(text string) (*Recipe, error) {
	r := &Recipe{Hash: ir.RecipeHash(text)}
	seen := make(map[string]string) // lower(name) -> kind

	for _, stmt := range querysql.Split(text) {
		sig := querysql.Significant(querysql.Tokenize(stmt.Text))

		switch {
		case len(sig) >= 2 && sig[0].IsKeyword("CREATE") && sig[1].IsKeyword("TABLE"):
			t, err := compileTable(stmt)
			if err != nil {
				return nil, err
			}
			if dup, ok := r.Table(t.Name); ok {
				if dup.Definition() != t.Definition() {
					return nil, &CompileError{Field: "table", Line: stmt.Line,
						Message: fmt.Sprintf("table %s declared twice with different definitions", t.Name)}
				}
				continue
			}
			if err := claimName(seen, t.Name, "table", stmt.Line); err != nil {
				return nil, err
			}
			r.Tables = append(r.Tables, t)

		default:
			q, err := compileQuery(stmt)
			if err != nil {
				return nil, err
			}
			if i := r.queryIndex(q.Name); i >= 0 {
				if r.Queries[i].Definition() != q.Definition() {
					return nil, &CompileError{Field: "query", Line: stmt.Line,
						Message: fmt.Sprintf("query %s declared twice with different definitions", q.Name)}
				}
				continue
			}
			if err := claimName(seen, q.Name, "query", stmt.Line); err != nil {
				return nil, err
			}
			r.Queries = append(r.Queries, q)
		}
	}
	return r, nil
}

func (r *Recipe) queryIndex(name string) int {
	for i, q := range r.Queries {
		if strings.EqualFold(q.Name, name) {
			return i
		}
	}
	return -1
}

func claimName(seen map[string]string, name, kind string, line int) error {
	if !identRe.MatchString(name) {
		return &CompileError{Field: kind, Line: line,
			Message: fmt.Sprintf("%q is not a plain identifier", name)}
	}
	if strings.HasPrefix(name, ContextRelationPrefix) {
		return &CompileError{Field: kind, Line: line,
			Message: fmt.Sprintf("%s uses the reserved prefix %s", name, ContextRelationPrefix)}
	}
	key := strings.ToLower(name)
	if prev, ok := seen[key]; ok {
		return &CompileError{Field: kind, Line: line,
			Message: fmt.Sprintf("%s is already declared as a %s", name, prev)}
	}
	seen[key] = kind
	return nil
}

// dropEntries are MySQL table-body entries SQLite rejects.
var dropEntries = map[string]bool{"KEY": true, "INDEX": true, "FULLTEXT": true, "SPATIAL": true}

func compileTable(stmt querysql.Statement) (Table, error) {
	toks := querysql.Tokenize(stmt.Text)
	sig := querysql.Significant(toks)

	// CREATE TABLE [IF NOT EXISTS] name ( ... ) [options]
	i := 2
	if len(sig) > i+2 && sig[i].IsKeyword("IF") && sig[i+1].IsKeyword("NOT") && sig[i+2].IsKeyword("EXISTS") {
		i += 3
	}
	if i >= len(sig) || sig[i].Name() == "" {
		return Table{}, &CompileError{Field: "table", Line: stmt.Line, Message: "missing table name"}
	}
	t := Table{Name: sig[i].Name(), Line: stmt.Line}
	i++
	if i >= len(sig) || !sig[i].IsSymbol("(") {
		return Table{}, &CompileError{Field: "table", Line: stmt.Line,
			Message: fmt.Sprintf("table %s has no column list", t.Name)}
	}

	// Split the column list on top-level commas.
	var (
		entries [][]querysql.Token
		cur     []querysql.Token
		depth   = 0
		closed  = false
	)
	for _, tok := range sig[i+1:] {
		switch {
		case tok.IsSymbol("("):
			depth++
		case tok.IsSymbol(")"):
			if depth == 0 {
				closed = true
			}
			depth--
		case tok.IsSymbol(",") && depth == 0:
			entries = append(entries, cur)
			cur = nil
			continue
		}
		if closed {
			break
		}
		cur = append(cur, tok)
	}
	if !closed {
		return Table{}, &CompileError{Field: "table", Line: stmt.Line,
			Message: fmt.Sprintf("table %s column list is not closed", t.Name)}
	}
	entries = append(entries, cur)

	var kept []string
	for _, e := range entries {
		if len(e) == 0 {
			continue
		}
		head := strings.ToUpper(e[0].Text)
		if dropEntries[head] || (head == "UNIQUE" && len(e) > 1 && dropEntries[strings.ToUpper(e[1].Text)]) {
			continue
		}
		var parts []string
		for _, tok := range e {
			if tok.IsKeyword("AUTO_INCREMENT") || tok.IsKeyword("UNSIGNED") {
				continue
			}
			parts = append(parts, tok.Text)
		}
		kept = append(kept, strings.Join(parts, " "))

		switch head {
		case "PRIMARY", "UNIQUE", "CONSTRAINT", "CHECK", "FOREIGN":
			continue
		}
		col := Column{Name: e[0].Name()}
		var typ strings.Builder
		for _, tok := range e[1:] {
			if tok.Kind == querysql.Ident && isConstraintWord(tok.Text) {
				break
			}
			if tok.Kind != querysql.Ident && tok.Kind != querysql.Number && !tok.IsSymbol("(") && !tok.IsSymbol(")") && !tok.IsSymbol(",") {
				break
			}
			if tok.Kind == querysql.Ident && typ.Len() > 0 {
				typ.WriteByte(' ')
			}
			typ.WriteString(tok.Text)
		}
		col.Type = typ.String()
		t.Columns = append(t.Columns, col)
	}
	if len(t.Columns) == 0 {
		return Table{}, &CompileError{Field: "table", Line: stmt.Line,
			Message: fmt.Sprintf("table %s declares no columns", t.Name)}
	}
	t.Body = "(" + strings.Join(kept, ", ") + ")"
	return t, nil
}

func isConstraintWord(s string) bool {
	switch strings.ToUpper(s) {
	case "NOT", "NULL", "PRIMARY", "KEY", "UNIQUE", "DEFAULT", "REFERENCES",
		"CHECK", "COLLATE", "AUTO_INCREMENT", "UNSIGNED", "CONSTRAINT", "GENERATED":
		return true
	}
	return false
}

func compileQuery(stmt querysql.Statement) (Query, error) {
	toks := querysql.Tokenize(stmt.Text)
	sig := querysql.Significant(toks)
	q := Query{Line: stmt.Line}

	// Find the colon after "QUERY name" or "name".
	colon := -1
	switch {
	case len(sig) >= 3 && sig[0].IsKeyword("QUERY") && sig[2].IsSymbol(":"):
		q.Name = sig[1].Name()
		colon = 2
	case len(sig) >= 2 && sig[1].IsSymbol(":"):
		q.Name = sig[0].Name()
		colon = 1
	}

	body := stmt.Text
	if colon >= 0 {
		// Skip tokens through the colon in the full token stream.
		seenSig := 0
		for i, tok := range toks {
			if tok.Kind != querysql.Space && tok.Kind != querysql.Comment {
				if seenSig == colon {
					body = strings.TrimSpace(querysql.Join(toks[i+1:]))
					break
				}
				seenSig++
			}
		}
		sig = sig[colon+1:]
	}
	if len(sig) == 0 || !sig[0].IsKeyword("SELECT") {
		return Query{}, &CompileError{Field: "query", Line: stmt.Line,
			Message: fmt.Sprintf("unsupported statement %q", firstWords(stmt.Text))}
	}
	if q.Name == "" {
		q.Name = "q_" + querysql.ShortFingerprint(body)
		q.Anonymous = true
	}
	q.SQL = body
	q.Relations = querysql.Relations(body)
	return q, nil
}

func firstWords(s string) string {
	fields := strings.Fields(s)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}
