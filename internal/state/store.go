// Package state holds the conversation view of the running session: peers,
// per-peer message sequences, unseen counts, presence and the selected peer.
// It is the only place messages are admitted, and admission is by identity.
package state

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/danhigham/quickchat/internal/domain"
)

// ErrStale is returned when a response arrived after the state it was
// requested for went away (peer switched or store cleared).
var ErrStale = errors.New("stale response discarded")

// Backend is the subset of the REST client the store fetches through.
type Backend interface {
	Users(ctx context.Context) ([]domain.Peer, map[string]int, error)
	Messages(ctx context.Context, peerID string) ([]domain.Message, error)
	MarkSeen(ctx context.Context, messageID string) error
}

// PushResult describes what IngestPush did with a message.
type PushResult struct {
	Inserted bool
	// ConfirmSeen is set when the message was shown in the open
	// conversation and the server should be told it was seen.
	ConfirmSeen bool
}

type Store struct {
	mu       sync.RWMutex
	peers    []domain.Peer
	unseen   map[string]int
	messages map[string][]domain.Message
	presence domain.PresenceSet
	selected string
	// epoch increments on Clear so in-flight fetches can detect a logout.
	epoch    uint64
	onChange func()
	logger   *zap.Logger
}

func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		unseen:   make(map[string]int),
		messages: make(map[string][]domain.Message),
		logger:   logger,
	}
}

// SetOnChange installs the callback run after every mutation.
func (s *Store) SetOnChange(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = f
}

// changed must be called with s.mu held; the callback runs after unlock.
func (s *Store) changed() func() {
	if s.onChange == nil {
		return func() {}
	}
	return s.onChange
}

// LoadPeers replaces the peer directory and the unseen map with the server's.
// The open conversation keeps a zero count.
func (s *Store) LoadPeers(ctx context.Context, b Backend) error {
	epoch := s.currentEpoch()

	peers, unseen, err := b.Users(ctx)
	if err != nil {
		return errors.Wrap(err, "load peers")
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return ErrStale
	}
	s.peers = peers
	s.unseen = unseen
	if s.unseen == nil {
		s.unseen = make(map[string]int)
	}
	if s.selected != "" {
		s.unseen[s.selected] = 0
	}
	notify := s.changed()
	s.mu.Unlock()

	notify()
	return nil
}

// LoadHistory replaces peerID's conversation with the server's history. The
// result is dropped with ErrStale if peerID is no longer selected when the
// response arrives.
func (s *Store) LoadHistory(ctx context.Context, b Backend, peerID string) error {
	epoch := s.currentEpoch()

	msgs, err := b.Messages(ctx, peerID)
	if err != nil {
		return errors.Wrap(err, "load history")
	}

	s.mu.Lock()
	if s.epoch != epoch || s.selected != peerID {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale history", zap.String("peer", peerID))
		return ErrStale
	}
	s.messages[peerID] = dedupe(msgs, s.logger)
	s.unseen[peerID] = 0
	notify := s.changed()
	s.mu.Unlock()

	notify()
	return nil
}

// AppendLocal adds the session user's own confirmed message to peerID's
// conversation. It reports whether the message was new.
func (s *Store) AppendLocal(peerID string, msg domain.Message) bool {
	s.mu.Lock()
	inserted := s.insertLocked(peerID, msg)
	notify := s.changed()
	s.mu.Unlock()

	if inserted {
		notify()
	}
	return inserted
}

// IngestPush applies a pushed message against the live selection.
//
// A message from the selected peer is marked seen and inserted; one from any
// other peer only bumps that peer's unseen counter. A message sent by selfID
// (the echo of our own send) is routed by receiver and never counted.
func (s *Store) IngestPush(msg domain.Message, selfID string) PushResult {
	var res PushResult

	s.mu.Lock()
	switch {
	case selfID != "" && msg.SenderID == selfID:
		if msg.ReceiverID != "" && msg.ReceiverID == s.selected {
			res.Inserted = s.insertLocked(msg.ReceiverID, msg)
		}
	case s.selected != "" && msg.SenderID == s.selected:
		msg.Seen = true
		res.Inserted = s.insertLocked(msg.SenderID, msg)
		res.ConfirmSeen = res.Inserted
		s.unseen[msg.SenderID] = 0
	default:
		// Increment-or-initialize; the sender is not checked against the directory.
		s.unseen[msg.SenderID]++
	}
	notify := s.changed()
	s.mu.Unlock()

	notify()
	return res
}

// MarkSeen flips the local seen flag, then tells the server. A server
// failure is logged and returned but the local flag stays set.
func (s *Store) MarkSeen(ctx context.Context, b Backend, messageID string) error {
	s.mu.Lock()
	found := false
	for peerID, msgs := range s.messages {
		for i := range msgs {
			if msgs[i].ID == messageID {
				msgs[i].Seen = true
				found = true
				break
			}
		}
		if found {
			s.messages[peerID] = msgs
			break
		}
	}
	notify := s.changed()
	s.mu.Unlock()

	if found {
		notify()
	}

	if err := b.MarkSeen(ctx, messageID); err != nil {
		s.logger.Warn("Failed to confirm seen state", zap.String("message", messageID), zap.Error(err))
		return errors.Wrap(err, "mark seen")
	}
	return nil
}

// Select makes peerID the open conversation and zeroes its unseen count.
func (s *Store) Select(peerID string) {
	s.mu.Lock()
	s.selected = peerID
	if peerID != "" {
		s.unseen[peerID] = 0
	}
	notify := s.changed()
	s.mu.Unlock()

	notify()
}

func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetPresence replaces the online set wholesale.
func (s *Store) SetPresence(p domain.PresenceSet) {
	cp := make(domain.PresenceSet, len(p))
	copy(cp, p)

	s.mu.Lock()
	s.presence = cp
	notify := s.changed()
	s.mu.Unlock()

	notify()
}

func (s *Store) Presence() domain.PresenceSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.PresenceSet, len(s.presence))
	copy(out, s.presence)
	return out
}

func (s *Store) Peers() []domain.Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Peer, len(s.peers))
	copy(out, s.peers)
	return out
}

// Peer looks a peer up in the directory.
func (s *Store) Peer(id string) (domain.Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.peers {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Peer{}, false
}

func (s *Store) Unseen() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.unseen))
	for k, v := range s.unseen {
		out[k] = v
	}
	return out
}

// UnseenCount returns the unseen counter for peerID.
func (s *Store) UnseenCount(peerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unseen[peerID]
}

func (s *Store) Messages(peerID string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[peerID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear drops everything, as on logout. Fetches started before Clear are
// discarded when they complete.
func (s *Store) Clear() {
	s.mu.Lock()
	s.peers = nil
	s.unseen = make(map[string]int)
	s.messages = make(map[string][]domain.Message)
	s.presence = nil
	s.selected = ""
	s.epoch++
	notify := s.changed()
	s.mu.Unlock()

	notify()
}

// Empty reports whether the store holds no peers, messages, counters or presence.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers) == 0 && len(s.messages) == 0 && len(s.unseen) == 0 && len(s.presence) == 0
}

func (s *Store) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// insertLocked appends msg to peerID's sequence unless its id is present.
func (s *Store) insertLocked(peerID string, msg domain.Message) bool {
	msgs := s.messages[peerID]
	for _, existing := range msgs {
		if existing.ID == msg.ID {
			if !existing.SameContent(msg) {
				logAnomaly(s.logger, existing, msg)
			}
			return false
		}
	}
	s.messages[peerID] = append(msgs, msg)
	return true
}

// dedupe keeps the first occurrence of every id, preserving order.
func dedupe(msgs []domain.Message, logger *zap.Logger) []domain.Message {
	out := make([]domain.Message, 0, len(msgs))
	index := make(map[string]int, len(msgs))
	for _, m := range msgs {
		if i, ok := index[m.ID]; ok {
			if !out[i].SameContent(m) {
				logAnomaly(logger, out[i], m)
			}
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}

func logAnomaly(logger *zap.Logger, kept, dropped domain.Message) {
	logger.Warn("Duplicate message id with differing content, keeping first",
		zap.String("message", kept.ID),
		zap.String("kept_sender", kept.SenderID),
		zap.String("dropped_sender", dropped.SenderID),
	)
}
