// Package chatsync wires session transitions, realtime events and REST
// calls into the conversation store.
package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/domain"
	"github.com/danhigham/quickchat/internal/realtime"
	"github.com/danhigham/quickchat/internal/state"
)

// Sessions is the part of session.Manager the coordinator depends on.
type Sessions interface {
	Session() domain.Session
	Client() *api.Client
	Expire(ctx context.Context, token string, cause error) error
}

// Channel is the part of realtime.Channel the coordinator depends on.
type Channel interface {
	Open(userID, token string, h realtime.Handler) *realtime.Subscription
	Close()
	State() realtime.State
	Degraded() bool
}

type Status struct {
	Session  domain.SessionStatus
	Channel  realtime.State
	Degraded bool
}

func (s Status) String() string {
	if s.Session != domain.StatusAuthenticated {
		return s.Session.String()
	}
	switch {
	case s.Channel == realtime.StateConnected:
		return "online"
	case s.Degraded:
		return "degraded"
	default:
		return "connecting"
	}
}

type Coordinator struct {
	sess    Sessions
	channel Channel
	store   *state.Store
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	sub     *realtime.Subscription
	userID  string
	onError func(error)

	bg sync.WaitGroup
}

func New(sess Sessions, channel Channel, store *state.Store, requestTimeout time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = api.DefaultTimeout
	}
	return &Coordinator{
		sess:    sess,
		channel: channel,
		store:   store,
		timeout: requestTimeout,
		logger:  logger,
	}
}

func (c *Coordinator) Store() *state.Store {
	return c.store
}

// OnError installs the hook that receives errors from background work.
func (c *Coordinator) OnError(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = f
}

func (c *Coordinator) Status() Status {
	return Status{
		Session:  c.sess.Session().Status,
		Channel:  c.channel.State(),
		Degraded: c.channel.Degraded(),
	}
}

// Wait blocks until background fetches and seen confirmations finish.
func (c *Coordinator) Wait() {
	c.bg.Wait()
}

// Shutdown closes the channel and waits for background work.
func (c *Coordinator) Shutdown() {
	c.closeSubscription()
	c.bg.Wait()
}

// OnSessionChange opens the channel on sign-in and tears everything down on
// sign-out.
func (c *Coordinator) OnSessionChange(_ context.Context, s domain.Session) error {
	switch s.Status {
	case domain.StatusAuthenticated:
		userID := s.UserID()
		if userID == "" {
			return errors.New("authenticated session without user id")
		}

		c.mu.Lock()
		prev, open := c.userID, c.sub != nil
		c.mu.Unlock()
		if open && prev == userID {
			return nil
		}
		if prev != "" && prev != userID {
			c.store.Clear()
		}

		sub := c.channel.Open(userID, s.Token, c)
		c.mu.Lock()
		c.sub = sub
		c.userID = userID
		c.mu.Unlock()

		c.logger.Info("Session started, syncing", zap.String("user", userID))
		c.goRefresh()
	case domain.StatusUnauthenticated:
		c.closeSubscription()
		c.store.Clear()
		c.logger.Info("Session ended, state cleared")
	}
	return nil
}

func (c *Coordinator) closeSubscription() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.userID = ""
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
		return
	}
	c.channel.Close()
}

func (c *Coordinator) self() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Coordinator) OnMessage(msg domain.Message) {
	res := c.store.IngestPush(msg, c.self())
	if res.ConfirmSeen {
		c.goMarkSeen(msg.ID)
	}
}

func (c *Coordinator) OnPresence(online domain.PresenceSet) {
	c.store.SetPresence(online)
}

func (c *Coordinator) OnReconnected() {
	c.goRefresh()
}

func (c *Coordinator) OnChannelError(err error) {
	c.logger.Warn("Realtime channel degraded", zap.Error(err))
	c.report(err)
}

// SelectPeer opens peerID's conversation and loads its history. An empty
// peerID clears the selection.
func (c *Coordinator) SelectPeer(ctx context.Context, peerID string) error {
	client, err := c.authedClient()
	if err != nil {
		return err
	}

	c.store.Select(peerID)
	if peerID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.handle(client, ignoreStale(c.store.LoadHistory(ctx, client, peerID)))
}

// Send delivers out to the selected peer and appends the confirmed message.
func (c *Coordinator) Send(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error) {
	client, err := c.authedClient()
	if err != nil {
		return domain.Message{}, err
	}
	peerID := c.store.Selected()
	if peerID == "" {
		return domain.Message{}, domain.ErrNoPeerSelected
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := client.Send(ctx, peerID, out)
	if err != nil {
		return domain.Message{}, c.handle(client, err)
	}
	if msg.ReceiverID == "" {
		msg.ReceiverID = peerID
	}

	// Drop the confirmation if the session ended during the round-trip.
	if c.sess.Session().Token != client.Token() {
		return msg, nil
	}
	c.store.AppendLocal(peerID, msg)
	return msg, nil
}

// MarkSeen sets the seen flag locally and confirms it with the server.
func (c *Coordinator) MarkSeen(ctx context.Context, messageID string) error {
	client, err := c.authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.handle(client, c.store.MarkSeen(ctx, client, messageID))
}

// Refresh reloads the peer directory and, if a peer is selected, its
// history. Both requests run concurrently.
func (c *Coordinator) Refresh(ctx context.Context) error {
	client, err := c.authedClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreStale(c.store.LoadPeers(gctx, client))
	})
	if peerID := c.store.Selected(); peerID != "" {
		g.Go(func() error {
			return ignoreStale(c.store.LoadHistory(gctx, client, peerID))
		})
	}
	return c.handle(client, g.Wait())
}

func ignoreStale(err error) error {
	if errors.Is(err, state.ErrStale) {
		return nil
	}
	return err
}

func (c *Coordinator) authedClient() (*api.Client, error) {
	if c.sess.Session().Status != domain.StatusAuthenticated {
		return nil, domain.ErrNotAuthenticated
	}
	return c.sess.Client(), nil
}

// handle ends the session if err says the credential client used was
// rejected. err is returned unchanged.
func (c *Coordinator) handle(client *api.Client, err error) error {
	if err == nil || !errors.Is(err, domain.ErrAuth) {
		return err
	}
	if expErr := c.sess.Expire(context.Background(), client.Token(), err); expErr != nil {
		c.logger.Warn("Sign out after rejected credential failed", zap.Error(expErr))
	}
	return err
}

func (c *Coordinator) goRefresh() {
	client := c.sess.Client()
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		err := ignoreStale(c.store.LoadPeers(ctx, client))
		if err == nil {
			return
		}
		c.logger.Warn("Peer refresh failed", zap.Error(err))
		c.report(c.handle(client, err))
	}()
}

func (c *Coordinator) goMarkSeen(messageID string) {
	client := c.sess.Client()
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		// The store logs confirmation failures; only a rejected credential matters here.
		if err := c.handle(client, c.store.MarkSeen(ctx, client, messageID)); errors.Is(err, domain.ErrAuth) {
			c.report(err)
		}
	}()
}

func (c *Coordinator) report(err error) {
	c.mu.Lock()
	f := c.onError
	c.mu.Unlock()
	if f != nil && err != nil {
		f(err)
	}
}
