package api

import (
	"time"

	"github.com/danhigham/quickchat/internal/domain"
)

// Wire shapes of the chat server. Field names follow the server's JSON.

type userDTO struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	Bio        string `json:"bio,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

func (u userDTO) profile() domain.Profile {
	return domain.Profile{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
	}
}

func (u userDTO) peer() domain.Peer {
	return domain.Peer{
		ID:          u.ID,
		DisplayName: u.FullName,
		AvatarRef:   u.ProfilePic,
		Bio:         u.Bio,
	}
}

// MessageDTO is the server's message object. It is exported so the push
// channel can decode the same shape.
type MessageDTO struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId,omitempty"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	Seen       bool   `json:"seen"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// Domain normalizes a wire message. A missing sender becomes "unknown" and a
// missing or unparsable timestamp becomes now.
func (m MessageDTO) Domain(now time.Time) domain.Message {
	sender := m.SenderID
	if sender == "" {
		sender = "unknown"
	}
	created := now
	if m.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, m.CreatedAt); err == nil {
			created = t
		}
	}
	return domain.Message{
		ID:         m.ID,
		SenderID:   sender,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		ImageRef:   m.Image,
		CreatedAt:  created,
		Seen:       m.Seen,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type checkResponse struct {
	envelope
	User     *userDTO `json:"user,omitempty"`
	UserData *userDTO `json:"userData,omitempty"`
}

type authResponse struct {
	envelope
	Token    string   `json:"token"`
	UserData *userDTO `json:"userData,omitempty"`
}

type profileResponse struct {
	envelope
	User *userDTO `json:"user,omitempty"`
}

type usersResponse struct {
	envelope
	Users          []userDTO      `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}

type messagesResponse struct {
	envelope
	Messages []MessageDTO `json:"messages"`
}

type sendResponse struct {
	envelope
	NewMessage *MessageDTO `json:"newMessage,omitempty"`
}

type authRequest struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio,omitempty"`
}

type profileRequest struct {
	FullName   string `json:"fullName,omitempty"`
	Bio        string `json:"bio,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

type sendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// result is implemented by every response so doRequest can check success.
type result interface {
	ok() (bool, string)
}

func (e envelope) ok() (bool, string) { return e.Success, e.Message }
