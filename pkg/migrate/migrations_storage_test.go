package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStorageEntriesMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_storage_entries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no storage entries migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS storage_entries",
		"PRIMARY KEY (namespace, entry_key)",
		"value TEXT NOT NULL",
		"DROP TABLE IF EXISTS storage_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
