package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/lobbychat/internal/store"
	"github.com/vovakirdan/lobbychat/internal/utils"
)

// allocateAttempts bounds how often a colliding generated identifier is replaced.
const allocateAttempts = 3

// IdentityService assigns anonymous user identifiers.
type IdentityService struct {
	users store.UserStore
	newID func() string
}

// NewIdentityService builds an identity service persisting into users.
func NewIdentityService(users store.UserStore) *IdentityService {
	return &IdentityService{users: users, newID: utils.NewID}
}

// EnsureIdentity returns supplied unchanged when it is non-empty. Supplied
// identities are not checked against the store.
// Otherwise it generates a new identifier and persists a user record for it.
// A generated identifier that already exists is replaced by a fresh one.
func (s *IdentityService) EnsureIdentity(ctx context.Context, supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}

	var err error
	for range allocateAttempts {
		id := s.newID()

		var n int64
		n, err = s.users.CreateUser(ctx, id)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create user: %w", err)
		}
		if n != 1 {
			return "", fmt.Errorf("create user: %d rows: %w", n, store.ErrNotInserted)
		}
		return id, nil
	}
	return "", fmt.Errorf("create user after %d attempts: %w", allocateAttempts, err)
}
