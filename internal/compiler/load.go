package compiler

import (
	"fmt"
	"os"
	"strings"
)

// LoadRecipe reads the schema file and, when queryPath is non-empty, the
// query file, joining them with a blank line into one recipe text.
func LoadRecipe(schemaPath, queryPath string) (string, error) {
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	if queryPath == "" {
		return string(schema), nil
	}

	queries, err := os.ReadFile(queryPath)
	if err != nil {
		return "", fmt.Errorf("read queries: %w", err)
	}

	var b strings.Builder
	b.Grow(len(schema) + len(queries) + 2)
	b.Write(schema)
	if !strings.HasSuffix(string(schema), "\n") {
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.Write(queries)
	return b.String(), nil
}

// LoadPolicy reads a security policy document.
func LoadPolicy(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read security config: %w", err)
	}
	return string(data), nil
}
