// Package realtime maintains the push connection bound to the signed-in
// user. At most one connection and one handler exist per Channel.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/domain"
)

const (
	eventNewMessage  = "newMessage"
	eventOnlineUsers = "getOnlineUsers"

	readLimit = 16 << 20 // image messages travel as data URLs
)

// Handler receives channel events. Calls are sequential, in server order,
// from the connection goroutine. A Handler must not call back into the
// Channel that is delivering to it.
type Handler interface {
	OnMessage(msg domain.Message)
	OnPresence(online domain.PresenceSet)
	// OnReconnected fires on every transition into StateConnected,
	// including the first.
	OnReconnected()
	// OnChannelError fires once per outage after MaxAttempts consecutive failures.
	OnChannelError(err error)
}

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type Config struct {
	URL            string
	ConnectTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxAttempts    int
	HTTPClient     *http.Client
}

func (c *Config) defaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Channel struct {
	cfg    Config
	logger *zap.Logger

	// mu serializes Open and Close; it is held while waiting for a
	// previous connection goroutine to exit.
	mu     sync.Mutex
	userID string
	cancel context.CancelFunc
	done   chan struct{}

	// hmu guards the handler and is held for the duration of each
	// delivery, so swapping handlers never overlaps a delivery.
	hmu     sync.Mutex
	handler Handler
	gen     uint64

	smu      sync.RWMutex
	state    State
	degraded bool
}

func New(cfg Config, logger *zap.Logger) *Channel {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{cfg: cfg, logger: logger}
}

// Subscription is the registration returned by Open.
type Subscription struct {
	ch  *Channel
	gen uint64
}

// Close removes the handler this subscription registered and tears the
// connection down. It does nothing if a later Open replaced it.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	c := s.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hmu.Lock()
	current := c.gen == s.gen
	c.hmu.Unlock()
	if current {
		c.closeLocked()
	}
}

// Open connects as userID and registers h as the only handler. If a
// connection for userID is already running, only the handler is replaced.
func (c *Channel) Open(userID, token string, h Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil || c.userID != userID {
		c.stopLocked()
		c.swapHandler(h)

		ctx, cancel := context.WithCancel(context.Background())
		c.userID = userID
		c.cancel = cancel
		c.done = make(chan struct{})
		c.setState(StateConnecting)
		go c.run(ctx, userID, token, c.done)
		c.logger.Info("Realtime channel opened", zap.String("user", userID))
	} else {
		c.swapHandler(h)
		c.logger.Debug("Realtime channel already open, handler replaced", zap.String("user", userID))
	}

	c.hmu.Lock()
	defer c.hmu.Unlock()
	return &Subscription{ch: c, gen: c.gen}
}

// Close tears down the connection and drops the handler. Safe to call
// repeatedly.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Channel) State() State {
	c.smu.RLock()
	defer c.smu.RUnlock()
	return c.state
}

// Degraded reports whether the channel has failed MaxAttempts times in a row
// since it was last connected.
func (c *Channel) Degraded() bool {
	c.smu.RLock()
	defer c.smu.RUnlock()
	return c.degraded
}

// Active reports whether a connection is open or being (re)established.
func (c *Channel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Channel) closeLocked() {
	c.stopLocked()
	c.swapHandler(nil)
	c.userID = ""
}

// stopLocked cancels the running connection and waits for its goroutine.
func (c *Channel) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.setState(StateDisconnected)
	c.logger.Info("Realtime channel closed", zap.String("user", c.userID))
}

func (c *Channel) swapHandler(h Handler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handler = h
	c.gen++
}

func (c *Channel) deliver(fn func(Handler)) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	if c.handler != nil {
		fn(c.handler)
	}
}

func (c *Channel) setState(s State) {
	c.smu.Lock()
	defer c.smu.Unlock()
	c.state = s
	if s == StateConnected {
		c.degraded = false
	}
}

func (c *Channel) setDegraded() {
	c.smu.Lock()
	defer c.smu.Unlock()
	c.degraded = true
}

func (c *Channel) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.MaxInterval = c.cfg.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// run keeps a connection alive until ctx is cancelled.
func (c *Channel) run(ctx context.Context, userID, token string, done chan struct{}) {
	defer close(done)

	b := c.newBackOff()
	failures := 0
	reported := false

	for {
		c.setState(StateConnecting)
		err := c.connect(ctx, userID, token, func() {
			failures = 0
			reported = false
			b.Reset()
		})
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}

		failures++
		c.logger.Warn("Realtime connection lost", zap.Int("failures", failures), zap.Error(err))
		if failures >= c.cfg.MaxAttempts && !reported {
			reported = true
			c.setDegraded()
			chErr := errors.Wrapf(domain.ErrChannel, "%d consecutive failures: %v", failures, err)
			c.deliver(func(h Handler) { h.OnChannelError(chErr) })
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			delay = c.cfg.MaxDelay
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (c *Channel) connect(ctx context.Context, userID, token string, onConnected func()) error {
	target, err := c.endpoint(userID)
	if err != nil {
		return err
	}

	opts := &websocket.DialOptions{HTTPClient: c.cfg.HTTPClient, HTTPHeader: http.Header{}}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, _, err := websocket.Dial(dialCtx, target, opts)
	cancel()
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	logger := c.logger.With(zap.String("conn_id", uuid.NewString()), zap.String("user", userID))
	logger.Info("Realtime connected")

	c.setState(StateConnected)
	onConnected()
	c.deliver(func(h Handler) { h.OnReconnected() })

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "client disconnect")
				return ctx.Err()
			}
			return errors.Wrap(err, "read")
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Debug("Skipping malformed frame", zap.Error(err))
			continue
		}
		c.dispatch(logger, env)
	}
}

func (c *Channel) dispatch(logger *zap.Logger, env envelope) {
	switch env.Event {
	case eventNewMessage:
		var dto api.MessageDTO
		if err := json.Unmarshal(env.Data, &dto); err != nil || dto.ID == "" {
			logger.Debug("Skipping malformed message event", zap.Error(err))
			return
		}
		msg := dto.Domain(time.Now())
		c.deliver(func(h Handler) { h.OnMessage(msg) })
	case eventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(env.Data, &ids); err != nil {
			logger.Debug("Skipping malformed presence event", zap.Error(err))
			return
		}
		online := domain.PresenceSet(ids)
		c.deliver(func(h Handler) { h.OnPresence(online) })
	default:
		logger.Debug("Ignoring event", zap.String("event", env.Event))
	}
}

func (c *Channel) endpoint(userID string) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", errors.Wrap(err, "parse socket url")
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
