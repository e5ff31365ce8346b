package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc123").Token()
	if err != nil || tok != "abc123" {
		t.Errorf("Token() = (%q, %v), want (abc123, nil)", tok, err)
	}

	if _, err := StaticToken("").Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty Token() error = %v, want ErrNoToken", err)
	}
}

func TestEnvToken(t *testing.T) {
	t.Setenv("TEST_TRADIER_TOKEN", "  from-env \n")

	tok, err := EnvToken{Var: "TEST_TRADIER_TOKEN"}.Token()
	if err != nil || tok != "from-env" {
		t.Errorf("Token() = (%q, %v), want (from-env, nil)", tok, err)
	}

	t.Setenv(DefaultEnvVar, "default-var")
	tok, err = EnvToken{}.Token()
	if err != nil || tok != "default-var" {
		t.Errorf("default Token() = (%q, %v), want (default-var, nil)", tok, err)
	}

	t.Setenv("TEST_TRADIER_EMPTY", "")
	if _, err := (EnvToken{Var: "TEST_TRADIER_EMPTY"}).Token(); !errors.Is(err, ErrNoToken) {
		t.Errorf("empty var error = %v, want ErrNoToken", err)
	}
}

func TestFileToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	src := FileToken{Path: path}
	tok, err := src.Token()
	if err != nil || tok != "file-token" {
		t.Errorf("Token() = (%q, %v), want (file-token, nil)", tok, err)
	}

	// Rotated in place.
	if err := os.WriteFile(path, []byte("rotated"), 0600); err != nil {
		t.Fatalf("failed to rewrite temp file: %v", err)
	}
	if tok, _ := src.Token(); tok != "rotated" {
		t.Errorf("Token() after rotation = %q, want rotated", tok)
	}

	if _, err := (FileToken{Path: "/nonexistent/token"}).Token(); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestResolve(t *testing.T) {
	if _, ok := Resolve("tok", "/some/file").(StaticToken); !ok {
		t.Error("explicit token should win")
	}
	if _, ok := Resolve("", "/some/file").(FileToken); !ok {
		t.Error("token file should come second")
	}
	if _, ok := Resolve("", "").(EnvToken); !ok {
		t.Error("environment should be the fallback")
	}
}

func TestHeaders(t *testing.T) {
	h, err := Headers(StaticToken("xyz"))
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}
	if h["Authorization"] != "Bearer xyz" {
		t.Errorf("Authorization = %q, want %q", h["Authorization"], "Bearer xyz")
	}
	if h["Accept"] != "application/json" {
		t.Errorf("Accept = %q", h["Accept"])
	}

	if _, err := Headers(StaticToken("")); err == nil {
		t.Error("expected error for empty token")
	}
}
