// Package compiler turns recipe text and security policy documents into the
// structures the engine installs.
//
// Recipes are SQL: CREATE TABLE statements for base relations and
// SELECT statements (optionally named with "QUERY name:" or "name:") for
// derived views. Policy documents are JSON or CUE and are validated against
// an embedded CUE schema (policy.cue) before decoding.
package compiler
