package main

import (
	"strings"
	"testing"
	"time"

	"github.com/danhigham/quickchat/internal/domain"
)

func TestFormatMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	name := func(id string) string { return "name-" + id }

	tests := []struct {
		name string
		msg  domain.Message
		want string
	}{
		{
			name: "incoming text",
			msg:  domain.Message{SenderID: "b", Text: "hi", CreatedAt: at},
			want: "2024-03-01 09:30  name-b: hi",
		},
		{
			name: "own seen",
			msg:  domain.Message{SenderID: "a", Text: "yo", CreatedAt: at, Seen: true},
			want: "2024-03-01 09:30  you: yo (seen)",
		},
		{
			name: "image",
			msg:  domain.Message{SenderID: "b", ImageRef: "data:image/png;base64,AAAA", CreatedAt: at},
			want: "2024-03-01 09:30  name-b: [image]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMessage(tt.msg, "a", name); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinter_PresenceChangesOnly(t *testing.T) {
	p := &printer{self: "a", names: map[string]string{"b": "Bob"}}

	p.OnPresence(domain.PresenceSet{"a", "b"})
	if strings.Join(p.online, ",") != "Bob" {
		t.Fatalf("online = %v", p.online)
	}
	prev := p.online
	p.OnPresence(domain.PresenceSet{"b", "a"})
	if &prev[0] != &p.online[0] {
		t.Error("unchanged presence replaced the snapshot")
	}
	p.OnPresence(domain.PresenceSet{"a"})
	if len(p.online) != 0 {
		t.Errorf("online = %v, want empty", p.online)
	}
}
