package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (t Tokens) Empty() bool {
	return strings.TrimSpace(t.Access) == ""
}

// Persister keeps tokens across process restarts.
type Persister interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}

type LogoutFunc func(reason string)

// Session owns the bearer tokens for one user. It replaces module-scoped
// token state: every component that needs a token gets the session injected.
type Session struct {
	mu        sync.RWMutex
	tokens    Tokens
	persister Persister
	listeners map[int]LogoutFunc
	nextID    int
	now       func() time.Time
	logger    logrus.FieldLogger
}

type Option func(*Session)

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(persister Persister, opts ...Option) *Session {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	s := &Session{
		persister: persister,
		listeners: make(map[int]LogoutFunc),
		now:       time.Now,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "session")
	return s
}

// Hydrate restores tokens from the persister. A token whose exp claim is
// already in the past is discarded without notifying listeners.
func (s *Session) Hydrate(ctx context.Context) error {
	tokens, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if tokens.Empty() {
		return nil
	}
	if exp, ok := tokenExpiry(tokens.Access); ok && !exp.After(s.now()) {
		s.logger.WithField("expired_at", exp).Info("discarding expired persisted session")
		return s.persister.Clear(ctx)
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return nil
}

func (s *Session) Set(ctx context.Context, tokens Tokens) error {
	if tokens.Empty() {
		return errors.New("access token is required")
	}
	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()
	return s.persister.Save(ctx, tokens)
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Access
}

func (s *Session) Active() bool {
	return s.AccessToken() != ""
}

// ExpiresAt reads the exp claim of the access token without verifying its
// signature; verification is the backend's job.
func (s *Session) ExpiresAt() (time.Time, bool) {
	return tokenExpiry(s.AccessToken())
}

// OnLogout registers a listener and returns a function that removes it.
func (s *Session) OnLogout(fn LogoutFunc) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Teardown clears the in-memory and persisted tokens and notifies every
// listener once.
func (s *Session) Teardown(ctx context.Context, reason string) {
	s.mu.Lock()
	s.tokens = Tokens{}
	listeners := make([]LogoutFunc, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	if err := s.persister.Clear(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to clear persisted tokens")
	}
	s.logger.WithField("reason", reason).Info("session torn down")

	for _, fn := range listeners {
		fn(reason)
	}
}

func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

type MemoryPersister struct {
	mu     sync.Mutex
	tokens Tokens
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) Load(_ context.Context) (Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, nil
}

func (m *MemoryPersister) Save(_ context.Context, tokens Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
	return nil
}

func (m *MemoryPersister) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = Tokens{}
	return nil
}
