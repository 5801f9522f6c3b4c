package api_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danhigham/quickchat/internal/api"
)

// Smallest valid PNG header; enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestImageDataURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(path, pngHeader, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := api.ImageDataURL(path)
	if err != nil {
		t.Fatalf("ImageDataURL() error: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("data url = %q", got)
	}
}

func TestImageDataURL_RejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just text"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := api.ImageDataURL(path); err == nil {
		t.Error("expected error for a text file")
	}
}

func TestImageDataURL_Missing(t *testing.T) {
	if _, err := api.ImageDataURL(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for a missing file")
	}
}
