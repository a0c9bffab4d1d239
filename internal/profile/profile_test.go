package profile

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateMintsIdentityOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profile.json")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if first.UserID == "" {
		t.Fatal("expected a minted user id")
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("expected a creation timestamp")
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second.UserID != first.UserID {
		t.Fatalf("identity changed between runs: %q vs %q", first.UserID, second.UserID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing profile")
	}
}
