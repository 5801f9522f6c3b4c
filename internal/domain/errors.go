package domain

import "github.com/go-faster/errors"

var (
	// ErrAuth means the credential or the login attempt was rejected.
	// It is terminal for the session.
	ErrAuth = errors.New("authentication failed")
	// ErrNetwork means a REST call did not complete.
	ErrNetwork = errors.New("network error")
	// ErrRequest means the server answered but refused the operation.
	ErrRequest = errors.New("request rejected")
	// ErrChannel means the push channel keeps failing to connect.
	ErrChannel = errors.New("realtime channel unavailable")

	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrNoPeerSelected       = errors.New("no peer selected")
)
