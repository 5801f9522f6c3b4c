// Package session owns the signed-in identity: restoring a persisted
// credential, login and registration, logout, profile updates and forced
// expiry when the server rejects the credential.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/credential"
	"github.com/danhigham/quickchat/internal/domain"
)

// Observer is notified after every session transition. It runs while the
// transition lock is held, so it must not call back into Manager
// transitions synchronously.
type Observer interface {
	OnSessionChange(ctx context.Context, s domain.Session) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, s domain.Session) error

func (f ObserverFunc) OnSessionChange(ctx context.Context, s domain.Session) error {
	return f(ctx, s)
}

type Manager struct {
	base   *api.Client
	creds  credential.Store
	logger *zap.Logger

	// op serializes transitions.
	op sync.Mutex

	mu        sync.RWMutex
	sess      domain.Session
	client    *api.Client
	observers []Observer
}

// New returns a signed-out Manager. base must not carry a token.
func New(base *api.Client, creds credential.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		base:   base,
		creds:  creds,
		logger: logger,
		client: base,
	}
}

func (m *Manager) Subscribe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess
}

// Client returns the request client bound to the current credential, or
// the unauthenticated client when signed out.
func (m *Manager) Client() *api.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Restore verifies a persisted credential. Any failure clears it and leaves
// the session signed out; the cause is returned.
func (m *Manager) Restore(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	if m.Session().Status == domain.StatusAuthenticated {
		return nil
	}

	token, err := m.creds.Load(ctx)
	if err != nil {
		m.logger.Warn("Failed to load credential", zap.Error(err))
		return multierr.Append(err, m.creds.Clear(ctx))
	}
	if token == "" {
		m.logger.Debug("No stored credential")
		return nil
	}

	client := m.base.WithToken(token)
	m.set(domain.Session{Status: domain.StatusAuthenticating, Token: token}, m.base)
	m.notify(ctx)

	profile, err := client.CheckAuth(ctx)
	if err != nil {
		m.logger.Info("Stored credential rejected", zap.Error(err))
		clearErr := m.creds.Clear(ctx)
		m.set(domain.Session{}, m.base)
		return multierr.Combine(errors.Wrap(err, "restore session"), clearErr, m.notify(ctx))
	}

	m.set(domain.Session{Status: domain.StatusAuthenticated, Token: token, Profile: profile}, client)
	m.logger.Info("Session restored", zap.String("user", profile.ID))
	if err := m.notify(ctx); err != nil {
		m.logger.Warn("Session observer failed", zap.Error(err))
	}
	return nil
}

// Authenticate logs in or registers. On failure nothing changes.
func (m *Manager) Authenticate(ctx context.Context, mode domain.AuthMode, creds domain.Credentials) (domain.Profile, error) {
	m.op.Lock()
	defer m.op.Unlock()

	if m.Session().Status == domain.StatusAuthenticated {
		return domain.Profile{}, domain.ErrAlreadyAuthenticated
	}
	if mode != domain.AuthLogin && mode != domain.AuthRegister {
		return domain.Profile{}, errors.Errorf("unknown auth mode %q", mode)
	}

	token, profile, err := m.base.Authenticate(ctx, mode, creds)
	if err != nil {
		return domain.Profile{}, err
	}
	if token == "" {
		return domain.Profile{}, errors.Wrap(domain.ErrAuth, "server returned no token")
	}

	if err := m.creds.Save(ctx, token); err != nil {
		m.logger.Warn("Failed to persist credential", zap.Error(err))
	}

	m.set(domain.Session{Status: domain.StatusAuthenticated, Token: token, Profile: profile}, m.base.WithToken(token))
	m.logger.Info("Authenticated", zap.String("mode", string(mode)), zap.String("user", profile.ID))
	if err := m.notify(ctx); err != nil {
		m.logger.Warn("Session observer failed", zap.Error(err))
	}
	return profile, nil
}

// Logout signs out. Observers are notified even when already signed out so
// a stray channel can be torn down.
func (m *Manager) Logout(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.logger.Info("Logging out", zap.String("user", m.Session().UserID()))
	return m.signOutLocked(ctx)
}

// Expire signs out because the server rejected token. It does nothing if
// token is no longer the current credential.
func (m *Manager) Expire(ctx context.Context, token string, cause error) error {
	m.op.Lock()
	defer m.op.Unlock()
	return m.expireLocked(ctx, token, cause)
}

func (m *Manager) expireLocked(ctx context.Context, token string, cause error) error {
	s := m.Session()
	if s.Status != domain.StatusAuthenticated || s.Token != token {
		return nil
	}
	m.logger.Warn("Credential rejected, signing out", zap.String("user", s.UserID()), zap.Error(cause))
	return m.signOutLocked(ctx)
}

// UpdateProfile replaces the profile in place. A rejected credential ends
// the session; other failures leave it untouched.
func (m *Manager) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.Profile, error) {
	m.op.Lock()
	defer m.op.Unlock()

	s := m.Session()
	if s.Status != domain.StatusAuthenticated {
		return domain.Profile{}, domain.ErrNotAuthenticated
	}

	profile, err := m.Client().UpdateProfile(ctx, upd)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			if expErr := m.expireLocked(ctx, s.Token, err); expErr != nil {
				m.logger.Warn("Sign out after rejected credential failed", zap.Error(expErr))
			}
		}
		return domain.Profile{}, err
	}
	if profile.ID == "" {
		profile.ID = s.Profile.ID
	}

	m.mu.Lock()
	m.sess.Profile = profile
	m.mu.Unlock()

	m.logger.Info("Profile updated", zap.String("user", profile.ID))
	if err := m.notify(ctx); err != nil {
		m.logger.Warn("Session observer failed", zap.Error(err))
	}
	return profile, nil
}

func (m *Manager) signOutLocked(ctx context.Context) error {
	err := m.creds.Clear(ctx)
	if err != nil {
		m.logger.Warn("Failed to clear credential", zap.Error(err))
	}
	m.set(domain.Session{}, m.base)
	return multierr.Append(err, m.notify(ctx))
}

func (m *Manager) set(s domain.Session, client *api.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = s
	m.client = client
}

// notify calls every observer with the current session and combines their errors.
func (m *Manager) notify(ctx context.Context) error {
	m.mu.RLock()
	s := m.sess
	observers := append([]Observer(nil), m.observers...)
	m.mu.RUnlock()

	var err error
	for _, o := range observers {
		err = multierr.Append(err, o.OnSessionChange(ctx, s))
	}
	return err
}
