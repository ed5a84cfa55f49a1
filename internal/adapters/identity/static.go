package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// StaticIdentity is a fixed token-to-user table for local mode and
// tests. Any bearer token equal to a user id resolves to that user.
type StaticIdentity struct {
	mu    sync.RWMutex
	users map[domain.UserID]*domain.User
}

func NewStatic(users ...*domain.User) *StaticIdentity {
	s := &StaticIdentity{users: make(map[domain.UserID]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *StaticIdentity) VerifyToken(ctx context.Context, idToken string) (*domain.User, error) {
	return s.GetUser(ctx, domain.UserID(idToken))
}

func (s *StaticIdentity) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", id)
	}
	copied := *u
	return &copied, nil
}

func (s *StaticIdentity) UpdateDisplayName(ctx context.Context, id domain.UserID, name string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", id)
	}
	u.DisplayName = name
	copied := *u
	return &copied, nil
}

func (s *StaticIdentity) EmailVerificationLink(ctx context.Context, email string) (string, error) {
	return "https://localhost/verify?email=" + email, nil
}
