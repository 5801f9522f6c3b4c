package credential_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danhigham/quickchat/internal/credential"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := credential.NewMemory()

	tok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() on empty store: %v", err)
	}
	if tok != "" {
		t.Fatalf("Load() = %q, want empty", tok)
	}

	if err := s.Save(ctx, "T1"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	tok, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "T1" {
		t.Errorf("Load() = %q, want T1", tok)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	tok, _ = s.Load(ctx)
	if tok != "" {
		t.Errorf("Load() after Clear = %q, want empty", tok)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credential.json")

	if err := credential.NewFile(path).Save(ctx, "persisted"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	tok, err := credential.NewFile(path).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "persisted" {
		t.Errorf("Load() = %q, want persisted", tok)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	s := credential.NewFile(filepath.Join(t.TempDir(), "nope.json"))
	tok, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Errorf("Load() = %q, want empty", tok)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := credential.NewFile(path).Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestSaveEmptyClears(t *testing.T) {
	ctx := context.Background()
	s := credential.NewMemory()
	_ = s.Save(ctx, "x")
	if err := s.Save(ctx, ""); err != nil {
		t.Fatalf("Save(\"\") error: %v", err)
	}
	if tok, _ := s.Load(ctx); tok != "" {
		t.Errorf("Load() = %q, want empty", tok)
	}
}
