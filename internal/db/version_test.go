package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/neonviz/neon/internal/db/migrations"
)

func TestSchemaVersionMatchesMigrations(t *testing.T) {
	got := SchemaVersion()
	if got != 3 {
		t.Fatalf("SchemaVersion() = %d, want 3", got)
	}
}

func TestMigrationsAreGooseAnnotated(t *testing.T) {
	err := fs.WalkDir(migrations.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		body, err := fs.ReadFile(migrations.FS, path)
		if err != nil {
			return err
		}

		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Errorf("%s: missing goose Up/Down annotations", path)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("walking migrations: %v", err)
	}
}
