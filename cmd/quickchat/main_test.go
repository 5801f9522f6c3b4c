package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/config"
	"github.com/danhigham/quickchat/internal/credential"
	"github.com/danhigham/quickchat/internal/domain"
	"github.com/danhigham/quickchat/internal/session"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestPrepareTUI_RestoresBeforeReturning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/check":
			// A slow check must still finish before the UI is built.
			time.Sleep(200 * time.Millisecond)
			writeJSON(w, map[string]any{"success": true, "userData": map[string]any{"_id": "U1", "fullName": "Ann"}})
		case "/api/messages/users":
			writeJSON(w, map[string]any{"success": true, "users": []any{}, "unseenMessages": map[string]int{}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	creds := credential.NewMemory()
	if err := creds.Save(ctx, "T1"); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Server.BaseURL = srv.URL
	cfg.Server.SocketURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	logger := zaptest.NewLogger(t)
	e := &env{
		cfg:    cfg,
		logger: logger,
		mgr:    session.New(api.New(srv.URL), creds, logger),
	}

	_, coord := prepareTUI(ctx, e)
	t.Cleanup(coord.Shutdown)

	s := e.mgr.Session()
	if s.Status != domain.StatusAuthenticated || s.UserID() != "U1" {
		t.Fatalf("session = %s (%q), want authenticated U1", s.Status, s.UserID())
	}
}

func TestSetup_WrapsConfigErrorWithPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })

	_, err := setup()
	if err == nil {
		t.Fatal("expected error for malformed config")
	}
	if !strings.Contains(err.Error(), path) || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("error = %q, want path and cause", err)
	}
}
