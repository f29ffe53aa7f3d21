package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/homelink/hub-go/internal/audit"
	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
)

type mockAdminSessionRepo struct {
	sessions map[string]*model.AdminSession
}

func newMockAdminSessionRepo() *mockAdminSessionRepo {
	return &mockAdminSessionRepo{sessions: make(map[string]*model.AdminSession)}
}

func (m *mockAdminSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	session, ok := m.sessions[tokenHash]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	return session, nil
}

func (m *mockAdminSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	session := &model.AdminSession{
		ID:        "5c5a0000-0000-4000-8000-000000000003",
		TokenHash: params.TokenHash,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now(),
	}
	m.sessions[params.TokenHash] = session
	return session, nil
}

func (m *mockAdminSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	delete(m.sessions, tokenHash)
	return nil
}

func (m *mockAdminSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func newAdminService(t *testing.T, repo *mockAdminSessionRepo) *AdminService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAdminService(repo, audit.NewRecorder(nil), string(hash), "test-session-secret")
}

func TestAdminLogin(t *testing.T) {
	t.Run("issues a session token for the right password", func(t *testing.T) {
		repo := newMockAdminSessionRepo()
		svc := newAdminService(t, repo)

		token, err := svc.Login(context.Background(), "correct horse", "127.0.0.1")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Len(t, repo.sessions, 1)

		session, err := svc.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.NotNil(t, session)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		svc := newAdminService(t, newMockAdminSessionRepo())

		_, err := svc.Login(context.Background(), "battery staple", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})

	t.Run("fails when admin is not configured", func(t *testing.T) {
		svc := NewAdminService(newMockAdminSessionRepo(), audit.NewRecorder(nil), "", "secret")

		assert.False(t, svc.Configured())
		_, err := svc.Login(context.Background(), "anything", "")
		assert.Error(t, err)
	})
}

func TestAdminLogout(t *testing.T) {
	repo := newMockAdminSessionRepo()
	svc := newAdminService(t, repo)

	token, err := svc.Login(context.Background(), "correct horse", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), token, ""))

	_, err = svc.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
}

func TestAdminAuthenticate(t *testing.T) {
	t.Run("rejects an unknown token", func(t *testing.T) {
		svc := newAdminService(t, newMockAdminSessionRepo())

		_, err := svc.Authenticate(context.Background(), "bogus")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})
}
