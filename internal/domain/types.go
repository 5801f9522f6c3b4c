package domain

import "time"

// Profile is the authenticated user's own account.
type Profile struct {
	ID         string
	FullName   string
	Email      string
	Bio        string
	ProfilePic string
}

// Peer is a counterpart the session user can chat with.
type Peer struct {
	ID          string
	DisplayName string
	AvatarRef   string
	Bio         string
}

type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	ImageRef   string // data URL or remote URL; empty for text messages
	CreatedAt  time.Time
	Seen       bool
}

// IsImage reports whether the message carries an image instead of text.
func (m Message) IsImage() bool {
	return m.ImageRef != ""
}

// SameContent reports whether two messages with the same ID carry the same payload.
func (m Message) SameContent(o Message) bool {
	return m.SenderID == o.SenderID &&
		m.ReceiverID == o.ReceiverID &&
		m.Text == o.Text &&
		m.ImageRef == o.ImageRef
}

// OutgoingMessage is the payload for a send. Exactly one field should be set.
type OutgoingMessage struct {
	Text  string
	Image string
}

// PresenceSet is the full list of online user ids, replaced on every push.
type PresenceSet []string

// Contains reports whether userID is online.
func (p PresenceSet) Contains(userID string) bool {
	for _, id := range p {
		if id == userID {
			return true
		}
	}
	return false
}

type SessionStatus int

const (
	StatusUnauthenticated SessionStatus = iota
	StatusAuthenticating
	StatusAuthenticated
)

func (s SessionStatus) String() string {
	switch s {
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is a snapshot of the running client's identity.
type Session struct {
	Status  SessionStatus
	Token   string
	Profile Profile
}

// UserID returns the authenticated user's id, or "" when signed out.
func (s Session) UserID() string {
	if s.Status != StatusAuthenticated {
		return ""
	}
	return s.Profile.ID
}

type AuthMode string

const (
	AuthLogin    AuthMode = "login"
	AuthRegister AuthMode = "register"
)

// Credentials are sent to the login or register endpoint. FullName and Bio
// are only used for registration.
type Credentials struct {
	FullName string
	Email    string
	Password string
	Bio      string
}

// ProfileUpdate carries the editable profile fields; empty fields are left unchanged.
type ProfileUpdate struct {
	FullName   string
	Bio        string
	ProfilePic string
}
