package api

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error describes a failed REST call. Kind is one of the domain error
// sentinels, so callers match with errors.Is(err, domain.ErrAuth) and so on.
type Error struct {
	Op      string
	Kind    error
	Status  int
	Message string // server-provided, safe to show to the user
	Err     error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.Error()
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage returns the text to show the user: the server's message when
// it sent one, the error otherwise.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
