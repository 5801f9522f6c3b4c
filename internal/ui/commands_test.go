package ui

import "testing"

func TestParseInput(t *testing.T) {
	tests := []struct {
		in      string
		cmd     bool
		kind    commandKind
		arg     string
		wantErr bool
	}{
		{in: "hello"},
		{in: "//not a command"},
		{in: "/image ~/cat.png", cmd: true, kind: cmdImage, arg: "~/cat.png"},
		{in: "/name  Ann Lee ", cmd: true, kind: cmdName, arg: "Ann Lee"},
		{in: "/bio likes tea", cmd: true, kind: cmdBio, arg: "likes tea"},
		{in: "/bio", cmd: true, wantErr: true},
		{in: "/LOGOUT", cmd: true, kind: cmdLogout},
		{in: "/refresh", cmd: true, kind: cmdRefresh},
		{in: "/image", cmd: true, wantErr: true},
		{in: "/dance", cmd: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, isCmd, err := parseInput(tt.in)
			if isCmd != tt.cmd {
				t.Fatalf("isCommand = %v, want %v", isCmd, tt.cmd)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil || !isCmd {
				return
			}
			if got.kind != tt.kind || got.arg != tt.arg {
				t.Errorf("command = %+v, want kind %d arg %q", got, tt.kind, tt.arg)
			}
		})
	}
}

func TestUnescapeText(t *testing.T) {
	if got := unescapeText("//shrug"); got != "/shrug" {
		t.Errorf("unescapeText = %q", got)
	}
	if got := unescapeText(" hi "); got != "hi" {
		t.Errorf("unescapeText = %q", got)
	}
}
