package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBusy is returned when a save or check is already in flight for the
	// same view.
	ErrBusy = errors.New("another save is already in progress")
	// ErrStaleView is returned when a response arrives after its view was closed.
	ErrStaleView = errors.New("view was closed before the response arrived")
)

// ValidationError is raised before any network call when nothing valid is
// left to save.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation (%s): %s", e.Kind, e.Message)
}

// ReferenceNotFoundError names a human-entered reference that did not
// resolve against the canonical list.
type ReferenceNotFoundError struct {
	Entity string
	Name   string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Name)
}

// SessionExpiredError is returned for any 401. The session has already been
// torn down when the caller sees it.
type SessionExpiredError struct {
	Detail string
}

func (e *SessionExpiredError) Error() string {
	if e.Detail == "" {
		return "session expired"
	}
	return "session expired: " + e.Detail
}

// ServerError covers non-2xx statuses other than 401 and malformed bodies.
type ServerError struct {
	Status int
	Detail string
	Err    error
}

func (e *ServerError) Error() string {
	var b strings.Builder
	b.WriteString("server error")
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServerError) Unwrap() error { return e.Err }

// Temporary reports whether the status is a 5xx.
func (e *ServerError) Temporary() bool {
	return e.Status >= 500
}

// NetworkError wraps transport failures (DNS, refused, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RowOutcome is the per-row state of a sequential commit.
type RowOutcome string

const (
	RowCommitted    RowOutcome = "committed"
	RowFailed       RowOutcome = "failed"
	RowNotAttempted RowOutcome = "not_attempted"
)

// PartialCommitError reports a sequential commit that stopped midway. Rows
// listed as committed are already persisted on the server.
type PartialCommitError struct {
	Committed []int
	Failed    int
	Pending   []int
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("saved %d row(s) before row %d failed (%d not attempted): %v",
		len(e.Committed), e.Failed, len(e.Pending), e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

func IsSessionExpired(err error) bool {
	var target *SessionExpiredError
	return errors.As(err, &target)
}
