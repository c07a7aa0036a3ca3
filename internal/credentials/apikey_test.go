package credentials

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robohub/internal/domain"
)

type fakeUserStore struct {
	users map[int64]domain.User
}

func (f *fakeUserStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (f *fakeUserStore) UpdateUserAPIKey(_ context.Context, userID int64, name, key string) error {
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	u.APIKeyName, u.APIKey = name, key
	f.users[userID] = u
	return nil
}

func (f *fakeUserStore) UpdateUserProxy(_ context.Context, userID int64, proxyURL, username, password string) error {
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	u.ProxyURL, u.ProxyUsername, u.ProxyPassword = proxyURL, username, password
	f.users[userID] = u
	return nil
}

func newFixture() (*Service, *fakeUserStore) {
	store := &fakeUserStore{users: map[int64]domain.User{
		1: {ID: 1, Email: "bob@example.com"},
	}}
	return NewService(store), store
}

func TestIssueAPIKey(t *testing.T) {
	svc, store := newFixture()

	name, secret, err := svc.IssueAPIKey(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyName, name)
	assert.Len(t, secret, 64, "32 random bytes hex-encoded")
	assert.Equal(t, secret, store.users[1].APIKey)

	// Re-issuing replaces the old key.
	_, second, err := svc.IssueAPIKey(context.Background(), 1)
	require.NoError(t, err)
	assert.NotEqual(t, secret, second)
}

func TestIssueAPIKeyUnknownUser(t *testing.T) {
	svc, _ := newFixture()
	_, _, err := svc.IssueAPIKey(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetAPIKey(t *testing.T) {
	svc, _ := newFixture()

	// No key issued yet.
	_, _, err := svc.GetAPIKey(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, issued, err := svc.IssueAPIKey(context.Background(), 1)
	require.NoError(t, err)

	name, secret, err := svc.GetAPIKey(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyName, name)
	assert.Equal(t, issued, secret)
}

func TestRevokeAPIKey(t *testing.T) {
	svc, store := newFixture()
	_, _, err := svc.IssueAPIKey(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAPIKey(context.Background(), 1))
	assert.Empty(t, store.users[1].APIKey)

	_, _, err = svc.GetAPIKey(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProxyRoundTrip(t *testing.T) {
	svc, store := newFixture()

	require.NoError(t, svc.SetProxy(context.Background(), 1, "http://proxy:8000", "bob", "s3cret"))
	assert.Equal(t, "bob", store.users[1].ProxyUsername)

	require.NoError(t, svc.ClearProxy(context.Background(), 1))
	assert.Empty(t, store.users[1].ProxyUsername)
	assert.Empty(t, store.users[1].ProxyPassword)
}
