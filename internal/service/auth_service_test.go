package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/internal/domain"
)

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: make(map[string]uuid.UUID)}
}

func (m *memTokens) Set(ctx context.Context, tokenUUID string, userID uuid.UUID, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenUUID] = userID
	return nil
}

func (m *memTokens) Get(ctx context.Context, tokenUUID string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.tokens[tokenUUID]
	if !ok {
		return uuid.Nil, domain.ErrTokenNotFound
	}
	return userID, nil
}

func (m *memTokens) Delete(ctx context.Context, tokenUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tokenUUID]; !ok {
		return domain.ErrTokenNotFound
	}
	delete(m.tokens, tokenUUID)
	return nil
}

func newAuthFixture(t *testing.T) (AuthService, *memUsers, *memTokens) {
	t.Helper()
	users := newMemUsers()
	tokens := newMemTokens()
	svc := NewAuthService(users, tokens, "test-secret", time.Hour, zerolog.Nop())
	return svc, users, tokens
}

func TestAuthRegisterLoginVerify(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, uuid.Nil, user.ID)

	resp, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	identity, err := svc.Verify(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "alice", identity.Username)
}

func TestAuthRejectsBadInput(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "secret123")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Имя пользователя — директория в файловом хранилище
	for _, name := range []string{"a/b", `a\b`, "..", "a.b"} {
		_, err := svc.Register(ctx, name, "secret123")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "username %q", name)
	}

	_, err = svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestAuthInvalidCredentials(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	// Несуществующий пользователь дает ту же ошибку, что и неверный пароль
	_, err = svc.Login(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthLogoutRevokesToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)
	resp, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, resp.Token))

	// Токен подписан верно, но отозван
	_, err = svc.Verify(ctx, resp.Token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestAuthVerifyGarbageToken(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
