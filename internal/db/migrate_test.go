package db

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationVersionsSorted(t *testing.T) {
	files := fstest.MapFS{
		"migrations/0002_b.sql":   {Data: []byte("SELECT 2;")},
		"migrations/0001_a.sql":   {Data: []byte("SELECT 1;")},
		"migrations/README.md":    {Data: []byte("notes")},
		"migrations/nested/x.sql": {Data: []byte("SELECT 3;")},
	}

	got, err := migrationVersions(files)
	if err != nil {
		t.Fatalf("migrationVersions() error = %v", err)
	}

	want := []string{"0001_a.sql", "0002_b.sql"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("versions = %v, want %v", got, want)
	}
}

func TestEmbeddedMigrationsDefineAuthSchema(t *testing.T) {
	versions, err := migrationVersions(migrationFiles)
	if err != nil {
		t.Fatalf("migrationVersions() error = %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected embedded migrations")
	}

	var schema strings.Builder
	for _, version := range versions {
		data, err := migrationFiles.ReadFile("migrations/" + version)
		if err != nil {
			t.Fatalf("read %s: %v", version, err)
		}
		schema.Write(data)
	}

	for _, table := range []string{"roles", "users", "refresh_tokens", "blacklisted_tokens", "password_reset_tokens", "email_verification_tokens"} {
		if !strings.Contains(schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("missing table %s", table)
		}
	}
}
