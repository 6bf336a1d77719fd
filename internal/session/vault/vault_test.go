package vault

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"boutique/backoffice/internal/session"
)

func TestFileRoundTripIsSealed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	f := NewFile(path, "correct horse battery")

	tokens := session.Tokens{Access: "access-token-value", Refresh: "refresh-token-value"}
	if err := f.Save(ctx, tokens); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if bytes.Contains(raw, []byte("access-token-value")) {
		t.Fatalf("expected token to be encrypted on disk")
	}

	loaded, err := f.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != tokens {
		t.Fatalf("expected %+v, got %+v", tokens, loaded)
	}

	_, err = NewFile(path, "wrong passphrase!!").Load(ctx)
	if !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
}

func TestFileMissingAndClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	f := NewFile(path, "correct horse battery")

	tokens, err := f.Load(ctx)
	if err != nil || !tokens.Empty() {
		t.Fatalf("expected empty tokens for a missing file, got %+v, %v", tokens, err)
	}
	if err := f.Clear(ctx); err != nil {
		t.Fatalf("clear missing file: %v", err)
	}

	if err := f.Save(ctx, session.Tokens{Access: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file to be removed, got %v", err)
	}
}
