package store

import (
	"strings"
	"testing"
)

// These tests check the embedded schema without requiring a live database
// connection.

func TestSchemaDefinesAllTables(t *testing.T) {
	for _, name := range []string{"bases", "chunks", "fields", "claims", "submissions"} {
		if !strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+name) {
			t.Fatalf("schema.sql missing table %q", name)
		}
	}
}

func TestSchemaDefinesClaimSelectionIndex(t *testing.T) {
	if !strings.Contains(schemaSQL, "idx_fields_claim_selection") {
		t.Fatalf("schema.sql missing claim-selection index")
	}
	if !strings.Contains(schemaSQL, "idx_submissions_validation") {
		t.Fatalf("schema.sql missing submission-validation index")
	}
}

func TestErrNoFieldAvailableMessage(t *testing.T) {
	if ErrNoFieldAvailable.Error() == "" {
		t.Fatalf("ErrNoFieldAvailable must have a message")
	}
}
