// Package querysql is a small lossless SQL lexer plus the rewrites the
// engine needs to derive per-tenant views from recipe queries: finding
// relation references, renaming them to universe-scoped relations, binding
// ctx.<attr> references in policy predicates, and fingerprinting query text
// for reuse.
//
// It is not a SQL parser. SQLite parses and validates the
// rewritten statements; this package only needs token boundaries.
package querysql
