package memory

import (
	"context"
	"sync"

	"github.com/yndnr/walletauth/internal/core/domain"
)

// TokenStore keeps the session pair in memory.
type TokenStore struct {
	mu      sync.RWMutex
	session *domain.StoredSession
}

// New creates an empty store.
func New() *TokenStore {
	return &TokenStore{}
}

// Load returns a copy of the stored session.
func (s *TokenStore) Load(_ context.Context) (*domain.StoredSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, false, nil
	}
	return clone(s.session), true, nil
}

// Save replaces the stored pair.
func (s *TokenStore) Save(_ context.Context, token domain.SessionToken, user domain.UserRecord) error {
	if token.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("empty token")
	}
	user, err := token.BindUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.session = clone(&domain.StoredSession{Token: token, User: user})
	s.mu.Unlock()
	return nil
}

// Clear removes the stored pair.
func (s *TokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	return nil
}

func clone(in *domain.StoredSession) *domain.StoredSession {
	out := *in
	if in.User.Email != nil {
		email := *in.User.Email
		out.User.Email = &email
	}
	return &out
}
