package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/audit"
	"github.com/homelink/hub-go/internal/config"
	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
	"github.com/homelink/hub-go/internal/repository"
	"github.com/homelink/hub-go/internal/util"
)

// AdminService backs the session-authenticated management surface
// (client listing, revocation, deletion).
type AdminService struct {
	sessionRepo   repository.AdminSessionRepository
	recorder      *audit.Recorder
	passwordHash  string
	sessionSecret string
}

func NewAdminService(
	sessionRepo repository.AdminSessionRepository,
	recorder *audit.Recorder,
	passwordHash, sessionSecret string,
) *AdminService {
	return &AdminService{
		sessionRepo:   sessionRepo,
		recorder:      recorder,
		passwordHash:  passwordHash,
		sessionSecret: sessionSecret,
	}
}

func (s *AdminService) Configured() bool {
	return s.passwordHash != ""
}

// Login verifies the admin password and issues a session token. Only
// the HMAC of the token is stored.
func (s *AdminService) Login(ctx context.Context, password, ip string) (string, error) {
	if !s.Configured() {
		return "", apperrors.Internal("Admin not configured")
	}

	if !util.CheckPasswordHash(password, s.passwordHash) {
		log.Warn().Str("ip", ip).Msg("admin login failed")
		s.recorder.Record(ctx, nil, audit.ActionAdminLoginFailed, "", ip)
		return "", apperrors.Unauthorized("Invalid password")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", apperrors.Internal("Failed to generate session token").WithCause(err)
	}

	_, err = s.sessionRepo.Create(ctx, model.CreateAdminSessionParams{
		TokenHash: util.HmacSHA256(s.sessionSecret, token),
		ExpiresAt: time.Now().Add(config.AdminSessionTTL),
	})
	if err != nil {
		return "", apperrors.Database(err)
	}

	s.recorder.Record(ctx, nil, audit.ActionAdminLogin, "", ip)
	return token, nil
}

func (s *AdminService) Logout(ctx context.Context, token, ip string) error {
	if err := s.sessionRepo.DeleteByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token)); err != nil {
		return apperrors.Database(err)
	}
	s.recorder.Record(ctx, nil, audit.ActionAdminLogout, "", ip)
	return nil
}

// Authenticate resolves a session token to a live admin session.
func (s *AdminService) Authenticate(ctx context.Context, token string) (*model.AdminSession, error) {
	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HmacSHA256(s.sessionSecret, token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.Unauthorized("Unauthorized")
	}
	return session, nil
}
