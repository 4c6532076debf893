package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadInlineValue(t *testing.T) {
	t.Parallel()

	got, err := Load(Source{Name: "api key", Value: "  token-123  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "token-123" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	got, err := Load(Source{Name: "api key", Value: "inline-token", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The file wins over the inline value.
	if got != "file-token" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, err := Load(Source{Name: "api key", File: path})
	if err == nil {
		t.Fatal("expected error for empty secret file")
	}

	if !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api key", File: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expected error for missing secret file")
	}
}

func TestLoadNotConfigured(t *testing.T) {
	t.Parallel()

	_, err := Load(Source{Name: "api key"})
	if err == nil {
		t.Fatal("expected error when no source is set")
	}

	if !strings.Contains(err.Error(), "api key is not configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}
