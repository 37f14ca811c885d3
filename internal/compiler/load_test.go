package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRecipeSchemaOnly(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.sql", "CREATE TABLE users (id int);")

	text, err := LoadRecipe(schema, "")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE users (id int);", text)
}

func TestLoadRecipeJoinsWithBlankLine(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.sql", "CREATE TABLE users (id int);\n")
	queries := writeFile(t, dir, "queries.sql", "QUERY all: SELECT id FROM users;\n")

	text, err := LoadRecipe(schema, queries)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE users (id int);\n\nQUERY all: SELECT id FROM users;\n", text)

	r, err := CompileRecipe(text)
	require.NoError(t, err)
	assert.Len(t, r.Tables, 1)
	assert.Len(t, r.Queries, 1)
}

func TestLoadRecipeMissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadRecipe(filepath.Join(dir, "nope.sql"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read schema")

	schema := writeFile(t, dir, "schema.sql", "CREATE TABLE users (id int);")
	_, err = LoadRecipe(schema, filepath.Join(dir, "nope.sql"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read queries")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "p.json", "[]")
	text, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", text)

	_, err = LoadPolicy(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
