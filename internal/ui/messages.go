package ui

import (
	"github.com/danhigham/quickchat/internal/domain"
)

// StoreUpdatedMsg signals that the conversation store changed.
type StoreUpdatedMsg struct{}

// SessionChangedMsg carries a new session snapshot.
type SessionChangedMsg struct {
	Session domain.Session
}

// ErrorMsg reports a failure from a command or from background sync.
type ErrorMsg struct {
	Err error
}

// InfoMsg shows a short confirmation in the status bar.
type InfoMsg struct {
	Text string
}

// peerSelectedMsg is emitted when the user picks a peer.
type peerSelectedMsg struct {
	peerID string
}

// historyLoadedMsg reports the end of a history fetch.
type historyLoadedMsg struct {
	peerID string
	err    error
}

// sendMessageMsg is emitted when the user presses Enter on plain text.
type sendMessageMsg struct {
	text string
}

// commandMsg is emitted when the input holds a slash command.
type commandMsg struct {
	cmd command
}

// authSubmitMsg is emitted by the auth form.
type authSubmitMsg struct {
	mode  domain.AuthMode
	creds domain.Credentials
}

// authDoneMsg reports the outcome of a login or registration.
type authDoneMsg struct {
	err error
}

// SplashDoneMsg signals that the splash screen timeout has elapsed.
type SplashDoneMsg struct{}

// clockTickMsg triggers a status bar refresh.
type clockTickMsg struct{}
