// Package credentials manages per-user API keys and proxy credentials.
// Secrets are opaque strings to the rest of the service.
package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"robohub/internal/domain"
)

// DefaultKeyName labels a freshly issued key until the user renames it.
const DefaultKeyName = "Robohub API Key"

// UserStore is the slice of persistence the credential service needs.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	UpdateUserAPIKey(ctx context.Context, userID int64, name, key string) error
	UpdateUserProxy(ctx context.Context, userID int64, proxyURL, username, password string) error
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service { return &Service{store: store} }

// IssueAPIKey generates and stores a fresh key for the user, replacing
// any existing one.
func (s *Service) IssueAPIKey(ctx context.Context, userID int64) (name, secret string, err error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return "", "", err
	}
	secret, err = newSecret()
	if err != nil {
		return "", "", err
	}
	if err := s.store.UpdateUserAPIKey(ctx, userID, DefaultKeyName, secret); err != nil {
		return "", "", err
	}
	return DefaultKeyName, secret, nil
}

// RevokeAPIKey clears the user's key columns. Revoking a user with no
// key is a no-op.
func (s *Service) RevokeAPIKey(ctx context.Context, userID int64) error {
	return s.store.UpdateUserAPIKey(ctx, userID, "", "")
}

// GetAPIKey returns the user's key, or domain.ErrNotFound when none is
// issued.
func (s *Service) GetAPIKey(ctx context.Context, userID int64) (name, secret string, err error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", "", err
	}
	if u.APIKey == "" {
		return "", "", fmt.Errorf("api key for user %d: %w", userID, domain.ErrNotFound)
	}
	return u.APIKeyName, u.APIKey, nil
}

// SetProxy stores the proxy credential triple; the username-requires-
// password invariant is enforced by the store at write time.
func (s *Service) SetProxy(ctx context.Context, userID int64, proxyURL, username, password string) error {
	return s.store.UpdateUserProxy(ctx, userID, proxyURL, username, password)
}

// ClearProxy removes the stored proxy credentials.
func (s *Service) ClearProxy(ctx context.Context, userID int64) error {
	return s.store.UpdateUserProxy(ctx, userID, "", "", "")
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
