package stockcheck

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"boutique/backoffice/internal/apperr"
	"boutique/backoffice/internal/domain"
)

type State int

const (
	Idle State = iota
	Checking
	Clear
	Conflict
	ConfirmedOverride
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Clear:
		return "clear"
	case Conflict:
		return "conflict"
	case ConfirmedOverride:
		return "confirmed_override"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrInvalidTransition = errors.New("stock check: invalid transition")

// Checker is the stock pre-check endpoint.
type Checker interface {
	CheckStock(ctx context.Context, items []domain.ResolvedItem) (domain.StockCheckResponse, error)
}

type Outcome struct {
	State  State
	Issues []domain.StockIssue
	// FailedOpen is set when the check itself failed and the policy let the
	// save continue as if no shortage was reported.
	FailedOpen bool
	CheckErr   error
}

// Negotiator runs one pre-flight stock check at a time and holds a conflict
// until the user confirms or cancels it.
type Negotiator struct {
	checker  Checker
	failOpen bool
	logger   logrus.FieldLogger

	mu     sync.Mutex
	state  State
	items  []domain.ResolvedItem
	issues []domain.StockIssue
}

type Option func(*Negotiator)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(n *Negotiator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func New(checker Checker, failOpen bool, opts ...Option) *Negotiator {
	n := &Negotiator{checker: checker, failOpen: failOpen, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.WithField("component", "stockcheck")
	return n
}

func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *Negotiator) Issues() []domain.StockIssue {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.StockIssue(nil), n.issues...)
}

// CanCommit reports whether a commit may proceed from the current state.
func (n *Negotiator) CanCommit() bool {
	s := n.State()
	return s == Clear || s == ConfirmedOverride
}

// Check sends items to the pre-check endpoint. It moves Idle to Checking and
// then to Clear or Conflict. A failed check either fails open to Clear or
// returns to Idle with the error, depending on policy. Session expiry and
// cancellation never fail open.
func (n *Negotiator) Check(ctx context.Context, items []domain.ResolvedItem) (Outcome, error) {
	n.mu.Lock()
	if n.state != Idle {
		n.mu.Unlock()
		return Outcome{}, apperr.ErrBusy
	}
	n.state = Checking
	n.items = append([]domain.ResolvedItem(nil), items...)
	n.issues = nil
	n.mu.Unlock()

	resp, err := n.checker.CheckStock(ctx, items)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		if n.failOpen && !apperr.IsSessionExpired(err) && ctx.Err() == nil {
			n.logger.WithError(err).Warn("stock check failed, continuing without it")
			n.state = Clear
			return Outcome{State: Clear, FailedOpen: true, CheckErr: err}, nil
		}
		n.state = Idle
		n.items = nil
		return Outcome{State: Idle, CheckErr: err}, err
	}

	if resp.HasIssues || len(resp.Issues) > 0 {
		n.state = Conflict
		n.issues = append([]domain.StockIssue(nil), resp.Issues...)
		return Outcome{State: Conflict, Issues: n.issues}, nil
	}
	n.state = Clear
	return Outcome{State: Clear}, nil
}

// Confirm accepts the shortages and returns the original items unchanged.
func (n *Negotiator) Confirm() ([]domain.ResolvedItem, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Conflict {
		return nil, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, n.state)
	}
	n.state = ConfirmedOverride
	return append([]domain.ResolvedItem(nil), n.items...), nil
}

// Cancel declines a conflict. The negotiator passes through Cancelled and is
// Idle again when Cancel returns.
func (n *Negotiator) Cancel() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != Conflict {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, n.state)
	}
	n.state = Cancelled
	n.logger.WithField("issues", len(n.issues)).Info("stock conflict cancelled")
	n.reset()
	return nil
}

// Reset returns to Idle after a commit attempt.
func (n *Negotiator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
}

func (n *Negotiator) reset() {
	n.state = Idle
	n.items = nil
	n.issues = nil
}
