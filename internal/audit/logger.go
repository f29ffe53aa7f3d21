package audit

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/repository"
)

type Action string

const (
	ActionPinGenerated     Action = "pin_generated"
	ActionPairingCompleted Action = "pairing_completed"
	ActionPairingFailed    Action = "pairing_failed"
	ActionClientRevoked    Action = "client_revoked"
	ActionClientDeleted    Action = "client_deleted"
	ActionAuthFailure      Action = "auth_failure"
	ActionChannelAuth      Action = "channel_authenticated"
	ActionAdminLogin       Action = "admin_login"
	ActionAdminLoginFailed Action = "admin_login_failed"
	ActionAdminLogout      Action = "admin_logout"
)

// Recorder appends to the durable activity trail and mirrors each
// entry to the structured log. Store failures are logged and swallowed;
// auditing never fails the audited operation.
type Recorder struct {
	repo repository.ActivityLogRepository
}

func NewRecorder(repo repository.ActivityLogRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Record(ctx context.Context, clientID *string, action Action, details, ip string) {
	event := log.Info().
		Str("audit", "security").
		Str("action", string(action))
	if clientID != nil {
		event = event.Str("client_id", *clientID)
	}
	if ip != "" {
		event = event.Str("ip", ip)
	}
	if details != "" {
		event = event.Str("details", details)
	}
	event.Msg("activity recorded")

	if r.repo == nil {
		return
	}
	if err := r.repo.Create(ctx, clientID, string(action), details, ip); err != nil {
		log.Error().Err(err).Str("action", string(action)).Msg("failed to persist activity entry")
	}
}

func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
