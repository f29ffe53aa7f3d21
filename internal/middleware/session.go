package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
)

const AdminSessionCookie = "admin_session"

type contextKey string

const AdminSessionContextKey contextKey = "adminSession"

func GetAdminSession(ctx context.Context) *model.AdminSession {
	if session, ok := ctx.Value(AdminSessionContextKey).(*model.AdminSession); ok {
		return session
	}
	return nil
}

// SessionAuthenticator is satisfied by service.AdminService.
type SessionAuthenticator interface {
	Configured() bool
	Authenticate(ctx context.Context, token string) (*model.AdminSession, error)
}

// AdminSessionMiddleware guards the management surface behind a
// cookie-carried session token.
type AdminSessionMiddleware struct {
	admin SessionAuthenticator
}

func NewAdminSessionMiddleware(admin SessionAuthenticator) *AdminSessionMiddleware {
	return &AdminSessionMiddleware{admin: admin}
}

func (m *AdminSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.admin.Configured() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Admin not configured",
			})
			return
		}

		cookie, err := r.Cookie(AdminSessionCookie)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		session, err := m.admin.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.ErrCodeUnauthorized {
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized",
				})
				return
			}
			log.Error().Err(err).Msg("admin session middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Session validation failed",
			})
			return
		}

		ctx := context.WithValue(r.Context(), AdminSessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SetSessionCookie(w http.ResponseWriter, token string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminSessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   AdminSessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
