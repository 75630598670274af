package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(1536)
	var parsedResults string
	for _, s := range stmts {
		if strings.Contains(s, "CREATE TABLE IF NOT EXISTS parsed_results") {
			parsedResults = s
		}
	}
	if parsedResults == "" {
		t.Fatal("parsed_results table missing from schema")
	}

	// A fresh semantic-cache row has already been hit once by the parse
	// that created it, so the eviction threshold counts from 1.
	assert.Contains(t, parsedResults, "hit_count       INT NOT NULL DEFAULT 1")
	assert.Contains(t, parsedResults, "query_embedding VECTOR(1536)")
	assert.Contains(t, parsedResults, "query_text      TEXT NOT NULL UNIQUE")
}
