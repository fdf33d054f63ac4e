package bootstrap

import (
	"strings"
	"testing"
)

// TestMigrationFiles proves the embedded migrations are discovered and
// ordered by version, so re-running bootstrap applies them deterministically.
func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected schema plus seed migrations, got %d", len(files))
	}

	for i := 1; i < len(files); i++ {
		if files[i-1].version >= files[i].version {
			t.Errorf("migrations out of order: %s before %s", files[i-1].version, files[i].version)
		}
	}

	if files[0].version != "000001" {
		t.Errorf("first migration version = %q, want 000001", files[0].version)
	}
	if !strings.Contains(string(files[0].content), "CREATE TABLE") {
		t.Error("schema migration must create tables")
	}
}
