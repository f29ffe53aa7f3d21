package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
)

type mockSessionAuthenticator struct {
	configured       bool
	authenticateFunc func(ctx context.Context, token string) (*model.AdminSession, error)
}

func (m *mockSessionAuthenticator) Configured() bool { return m.configured }

func (m *mockSessionAuthenticator) Authenticate(ctx context.Context, token string) (*model.AdminSession, error) {
	return m.authenticateFunc(ctx, token)
}

func serveWithSession(t *testing.T, auth *mockSessionAuthenticator, cookie string) (*httptest.ResponseRecorder, *model.AdminSession) {
	t.Helper()

	var captured *model.AdminSession
	handler := NewAdminSessionMiddleware(auth).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetAdminSession(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: cookie})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestAdminSessionMiddleware(t *testing.T) {
	t.Run("503 when admin auth is not configured", func(t *testing.T) {
		auth := &mockSessionAuthenticator{configured: false}

		rec, _ := serveWithSession(t, auth, "anything")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("401 without a session cookie", func(t *testing.T) {
		auth := &mockSessionAuthenticator{configured: true}

		rec, _ := serveWithSession(t, auth, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("401 on an unknown or expired token", func(t *testing.T) {
		auth := &mockSessionAuthenticator{
			configured: true,
			authenticateFunc: func(ctx context.Context, token string) (*model.AdminSession, error) {
				return nil, apperrors.Unauthorized("invalid session")
			},
		}

		rec, _ := serveWithSession(t, auth, "stale-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("500 on a lookup failure", func(t *testing.T) {
		auth := &mockSessionAuthenticator{
			configured: true,
			authenticateFunc: func(ctx context.Context, token string) (*model.AdminSession, error) {
				return nil, apperrors.Database(assert.AnError)
			},
		}

		rec, _ := serveWithSession(t, auth, "token")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("valid token reaches the handler with the session in context", func(t *testing.T) {
		session := &model.AdminSession{ID: "a6c54e3f-0000-4000-8000-000000000009"}
		auth := &mockSessionAuthenticator{
			configured: true,
			authenticateFunc: func(ctx context.Context, token string) (*model.AdminSession, error) {
				require.Equal(t, "good-token", token)
				return session, nil
			},
		}

		rec, captured := serveWithSession(t, auth, "good-token")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, session, captured)
	})
}
