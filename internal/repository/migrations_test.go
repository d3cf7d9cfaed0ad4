package repository

import "testing"

func TestMigrations_SequentialVersions(t *testing.T) {
	ms := Migrations(384)
	for i, m := range ms {
		want := i + 1
		if m.Version != want {
			t.Fatalf("migration %d has version %d, want %d", i, m.Version, want)
		}
		if m.Name == "" {
			t.Fatalf("migration %d has empty name", m.Version)
		}
		if m.SQL == "" {
			t.Fatalf("migration %d has empty SQL", m.Version)
		}
	}
}

func TestMigrations_EmbeddingDimensionInterpolated(t *testing.T) {
	ms := Migrations(768)
	found := false
	for _, m := range ms {
		if m.Name == "chunks" {
			found = true
			if !contains(m.SQL, "vector(768)") {
				t.Fatalf("expected chunks migration to embed dimension 768, got: %s", m.SQL)
			}
		}
	}
	if !found {
		t.Fatal("expected a chunks migration")
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
