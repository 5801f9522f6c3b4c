package chatsync_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/chatsync"
	"github.com/danhigham/quickchat/internal/credential"
	"github.com/danhigham/quickchat/internal/domain"
	"github.com/danhigham/quickchat/internal/realtime"
	"github.com/danhigham/quickchat/internal/session"
	"github.com/danhigham/quickchat/internal/state"
)

// backend fakes the chat server: REST under /api and the push socket at /ws.
type backend struct {
	t *testing.T

	mu         sync.Mutex
	history    map[string][]map[string]any
	unseen     map[string]int
	usersCalls int
	usersCode  int
	marked     []string
	nextID     int
	echoOnSend bool
	conn       *websocket.Conn
	conns      chan *websocket.Conn

	// wmu serializes writes; gorilla connections allow one writer at a time.
	wmu sync.Mutex
}

var upgrader = websocket.Upgrader{}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{
		t:       t,
		history: make(map[string][]map[string]any),
		unseen:  make(map[string]int),
		conns:   make(chan *websocket.Conn, 8),
	}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/ws":
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()
		b.conns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	case path == "/api/auth/login":
		writeJSON(w, 200, map[string]any{"success": true, "token": "T1", "userData": map[string]any{"_id": "U1", "fullName": "Ann"}})
	case path == "/api/messages/users":
		b.mu.Lock()
		b.usersCalls++
		code, unseen := b.usersCode, b.unseen
		b.mu.Unlock()
		if code != 0 {
			writeJSON(w, code, map[string]any{"success": false, "message": "jwt expired"})
			return
		}
		writeJSON(w, 200, map[string]any{
			"success":        true,
			"users":          []map[string]any{{"_id": "U2", "fullName": "Bob"}, {"_id": "U3", "fullName": "Cat"}},
			"unseenMessages": unseen,
		})
	case strings.HasPrefix(path, "/api/messages/send/"):
		peer := strings.TrimPrefix(path, "/api/messages/send/")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.nextID++
		msg := map[string]any{"_id": fmt.Sprintf("s%d", b.nextID), "senderId": "U1", "receiverId": peer, "text": body["text"]}
		echo := b.echoOnSend
		b.mu.Unlock()

		if echo {
			b.push("newMessage", msg)
			// Give the client time to apply the echo before the response.
			time.Sleep(50 * time.Millisecond)
		}
		writeJSON(w, 200, map[string]any{"success": true, "newMessage": msg})
	case strings.HasPrefix(path, "/api/messages/mark/"):
		b.mu.Lock()
		b.marked = append(b.marked, strings.TrimPrefix(path, "/api/messages/mark/"))
		b.mu.Unlock()
		writeJSON(w, 200, map[string]any{"success": true})
	case strings.HasPrefix(path, "/api/messages/"):
		peer := strings.TrimPrefix(path, "/api/messages/")
		b.mu.Lock()
		msgs := b.history[peer]
		b.mu.Unlock()
		writeJSON(w, 200, map[string]any{"success": true, "messages": msgs})
	default:
		http.NotFound(w, r)
	}
}

func (b *backend) push(event string, data any) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		b.t.Error("push before a client connected")
		return
	}
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if err := conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		b.t.Errorf("push %s: %v", event, err)
	}
}

func (b *backend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usersCalls
}

func (b *backend) markedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.marked...)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type harness struct {
	be      *backend
	mgr     *session.Manager
	channel *realtime.Channel
	store   *state.Store
	coord   *chatsync.Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	be, srv := newBackend(t)
	logger := zaptest.NewLogger(t)

	h := &harness{be: be}
	h.mgr = session.New(api.New(srv.URL), credential.NewMemory(), logger)
	h.channel = realtime.New(realtime.Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		MaxAttempts: 3,
	}, logger)
	h.store = state.New(logger)
	h.coord = chatsync.New(h.mgr, h.channel, h.store, 2*time.Second, logger)
	h.mgr.Subscribe(h.coord)
	t.Cleanup(h.coord.Shutdown)
	return h
}

// login signs in and waits until the socket is up and both the initial and
// the on-connect peer fetches have landed.
func (h *harness) login(t *testing.T) {
	t.Helper()
	before := h.be.calls()
	if _, err := h.mgr.Authenticate(context.Background(), domain.AuthLogin, domain.Credentials{Email: "a@b", Password: "pw"}); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	select {
	case <-h.be.conns:
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
	}
	eventually(t, "peer fetches", func() bool { return h.be.calls() >= before+2 })
	h.coord.Wait()
}

func TestCoordinator_LoginThenReceive(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if got := h.store.Peers(); len(got) != 2 {
		t.Fatalf("peers = %+v", got)
	}
	if h.coord.Status().String() != "online" {
		t.Errorf("status = %s, want online", h.coord.Status())
	}

	h.be.push("newMessage", map[string]any{"_id": "m1", "senderId": "U2", "receiverId": "U1", "text": "hi"})

	eventually(t, "unseen count", func() bool { return h.store.UnseenCount("U2") == 1 })
	if got := h.store.Messages("U2"); len(got) != 0 {
		t.Errorf("unselected conversation has messages: %+v", got)
	}
}

func TestCoordinator_SelectThenReconcile(t *testing.T) {
	h := newHarness(t)
	h.be.history["U2"] = []map[string]any{{"_id": "m1", "senderId": "U2", "receiverId": "U1", "text": "hello"}}
	h.be.unseen["U2"] = 1
	h.login(t)

	if err := h.coord.SelectPeer(context.Background(), "U2"); err != nil {
		t.Fatalf("SelectPeer() error: %v", err)
	}
	if got := h.store.Messages("U2"); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("messages = %+v", got)
	}
	if h.store.UnseenCount("U2") != 0 {
		t.Errorf("unseen[U2] = %d", h.store.UnseenCount("U2"))
	}

	// Duplicate of a loaded message, then a new one.
	h.be.push("newMessage", map[string]any{"_id": "m1", "senderId": "U2", "receiverId": "U1", "text": "hello"})
	h.be.push("newMessage", map[string]any{"_id": "m2", "senderId": "U2", "receiverId": "U1", "text": "again"})

	eventually(t, "second message", func() bool { return len(h.store.Messages("U2")) == 2 })
	eventually(t, "seen confirmation", func() bool {
		ids := h.be.markedIDs()
		return len(ids) == 1 && ids[0] == "m2"
	})
	if got := h.store.Messages("U2"); !got[1].Seen {
		t.Error("message pushed into the open conversation not marked seen")
	}
}

func TestCoordinator_SendToleratesEchoFirst(t *testing.T) {
	h := newHarness(t)
	h.be.echoOnSend = true
	h.login(t)

	if err := h.coord.SelectPeer(context.Background(), "U2"); err != nil {
		t.Fatal(err)
	}
	msg, err := h.coord.Send(context.Background(), domain.OutgoingMessage{Text: "yo"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	got := h.store.Messages("U2")
	if len(got) != 1 || got[0].ID != msg.ID {
		t.Fatalf("messages = %+v, want exactly %s", got, msg.ID)
	}
	if h.store.UnseenCount("U1") != 0 {
		t.Error("own echo counted as unseen")
	}
}

func TestCoordinator_SendRequiresSelection(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if _, err := h.coord.Send(context.Background(), domain.OutgoingMessage{Text: "x"}); !errors.Is(err, domain.ErrNoPeerSelected) {
		t.Errorf("err = %v, want ErrNoPeerSelected", err)
	}
}

func TestCoordinator_RequiresSession(t *testing.T) {
	h := newHarness(t)
	if err := h.coord.SelectPeer(context.Background(), "U2"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
	if err := h.coord.Refresh(context.Background()); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestCoordinator_LogoutClears(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.be.push("getOnlineUsers", []string{"U2"})
	h.be.push("newMessage", map[string]any{"_id": "m1", "senderId": "U3", "text": "x"})
	eventually(t, "push applied", func() bool { return h.store.UnseenCount("U3") == 1 && len(h.store.Presence()) == 1 })

	if err := h.mgr.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}

	if !h.store.Empty() {
		t.Error("store not empty after logout")
	}
	if h.channel.Active() {
		t.Error("channel still active after logout")
	}
	if got := h.coord.Status().String(); got != "unauthenticated" {
		t.Errorf("status = %s", got)
	}
}

func TestCoordinator_RejectedCredentialExpiresSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.be.mu.Lock()
	h.be.usersCode = http.StatusUnauthorized
	h.be.mu.Unlock()

	if err := h.coord.Refresh(context.Background()); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	if s := h.mgr.Session(); s.Status != domain.StatusUnauthenticated {
		t.Errorf("status = %s, want unauthenticated", s.Status)
	}
	if h.channel.Active() {
		t.Error("channel still active after expiry")
	}
}

func TestCoordinator_BackgroundAuthFailureReported(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	reported := make(chan error, 4)
	h.coord.OnError(func(err error) { reported <- err })

	h.be.mu.Lock()
	h.be.usersCode = http.StatusUnauthorized
	h.be.mu.Unlock()

	// A reconnect-triggered refresh runs in the background.
	h.coord.OnReconnected()
	h.coord.Wait()

	select {
	case err := <-reported:
		if !errors.Is(err, domain.ErrAuth) {
			t.Errorf("reported %v, want ErrAuth", err)
		}
	default:
		t.Fatal("background failure not reported")
	}
	if s := h.mgr.Session(); s.Status != domain.StatusUnauthenticated {
		t.Errorf("status = %s, want unauthenticated", s.Status)
	}
}

func TestCoordinator_ReloginDoesNotDoubleDeliver(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	if err := h.mgr.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.login(t)

	h.be.push("newMessage", map[string]any{"_id": "m1", "senderId": "U2", "text": "once"})
	eventually(t, "unseen count", func() bool { return h.store.UnseenCount("U2") >= 1 })
	time.Sleep(100 * time.Millisecond)
	if got := h.store.UnseenCount("U2"); got != 1 {
		t.Errorf("unseen[U2] = %d, want 1", got)
	}
}
