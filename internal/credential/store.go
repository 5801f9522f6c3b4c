// Package credential persists the single session token on top of gotd's
// session storage.
package credential

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
)

// Store loads, saves and clears the persisted token. Load returns "" with a
// nil error when no token is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type record struct {
	Token string `json:"token"`
}

// SessionStore adapts a gotd session.Storage to Store.
type SessionStore struct {
	storage session.Storage
}

func New(storage session.Storage) *SessionStore {
	return &SessionStore{storage: storage}
}

// NewFile stores the token in a JSON file at path.
func NewFile(path string) *SessionStore {
	return New(&session.FileStorage{Path: path})
}

// NewMemory keeps the token in process memory only.
func NewMemory() *SessionStore {
	return New(&session.StorageMemory{})
}

func (s *SessionStore) Load(ctx context.Context) (string, error) {
	data, err := s.storage.LoadSession(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "load credential")
	}
	if len(data) == 0 {
		return "", nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", errors.Wrap(err, "decode credential")
	}
	return rec.Token, nil
}

func (s *SessionStore) Save(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}
	data, err := json.Marshal(record{Token: token})
	if err != nil {
		return errors.Wrap(err, "encode credential")
	}
	if err := s.storage.StoreSession(ctx, data); err != nil {
		return errors.Wrap(err, "store credential")
	}
	return nil
}

// Clear overwrites the stored payload with an empty one, which Load treats
// as absent for every session.Storage implementation.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.storage.StoreSession(ctx, nil); err != nil {
		return errors.Wrap(err, "clear credential")
	}
	return nil
}
