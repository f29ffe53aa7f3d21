package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/audit"
	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
	"github.com/homelink/hub-go/internal/repository"
	"github.com/homelink/hub-go/internal/util"
)

// RevocationNotifier is told when a client loses its trust so an
// already-live realtime connection can be torn down immediately.
type RevocationNotifier interface {
	CloseClient(clientID string)
}

// ClientService owns the public-key-to-identity registry: certificate
// verification, revocation, and activity tracking.
type ClientService struct {
	clientRepo   repository.ClientRepository
	activityRepo repository.ActivityLogRepository
	recorder     *audit.Recorder
	notifier     RevocationNotifier
}

func NewClientService(
	clientRepo repository.ClientRepository,
	activityRepo repository.ActivityLogRepository,
	recorder *audit.Recorder,
) *ClientService {
	return &ClientService{
		clientRepo:   clientRepo,
		activityRepo: activityRepo,
		recorder:     recorder,
	}
}

// SetRevocationNotifier wires the realtime hub in after construction;
// the hub itself depends on this service for frame authentication.
func (s *ClientService) SetRevocationNotifier(n RevocationNotifier) {
	s.notifier = n
}

// VerifyCertificate checks a supplied trust token against the stored
// one in constant time. A missing client, an inactive client and a
// wrong certificate all fail the same way.
func (s *ClientService) VerifyCertificate(ctx context.Context, clientID, certificate string) (*model.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		s.recorder.Record(ctx, nil, audit.ActionAuthFailure, "unknown client", "")
		return nil, apperrors.InvalidCertificate()
	}
	if !client.IsActive {
		s.recorder.Record(ctx, &client.ID, audit.ActionAuthFailure, "client inactive", "")
		return nil, apperrors.InvalidCertificate()
	}

	if !util.ConstantTimeEqual(client.Certificate, certificate) {
		s.recorder.Record(ctx, &client.ID, audit.ActionAuthFailure, "certificate mismatch", "")
		return nil, apperrors.InvalidCertificate()
	}

	s.recorder.Record(ctx, &client.ID, audit.ActionChannelAuth, "", "")
	return client, nil
}

// RequireActive re-checks is_active. Privileged realtime frames call
// this on every action so a revoked client's window closes after a
// single store round-trip, not at the next handshake.
func (s *ClientService) RequireActive(ctx context.Context, clientID string) error {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return apperrors.Database(err)
	}
	if client == nil || !client.IsActive {
		return apperrors.Authentication("client is not active")
	}
	return nil
}

// UpdateActivity bumps last_seen. It deliberately does not check
// is_active; enforcement lives at the authentication boundary.
func (s *ClientService) UpdateActivity(ctx context.Context, clientID string) error {
	now := time.Now()
	_, err := s.clientRepo.Update(ctx, clientID, model.UpdateClientParams{LastSeen: &now})
	if err != nil {
		return apperrors.Database(err)
	}
	return nil
}

// Revoke flips is_active to false. Revoking an already-inactive client
// succeeds; the transition only ever runs active to inactive.
func (s *ClientService) Revoke(ctx context.Context, clientID, ip string) error {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return apperrors.Database(err)
	}
	if client == nil {
		return apperrors.NotFound("Client")
	}

	if client.IsActive {
		inactive := false
		if _, err := s.clientRepo.Update(ctx, clientID, model.UpdateClientParams{IsActive: &inactive}); err != nil {
			return apperrors.Database(err)
		}
	}

	if s.notifier != nil {
		s.notifier.CloseClient(clientID)
	}

	log.Info().Str("clientId", clientID).Msg("client revoked")
	s.recorder.Record(ctx, &clientID, audit.ActionClientRevoked, "", ip)

	return nil
}

func (s *ClientService) List(ctx context.Context) ([]model.Client, error) {
	clients, err := s.clientRepo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, clientID string) (*model.Client, error) {
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Client")
	}
	return client, nil
}

// Delete hard-removes a client record. This is the explicit
// administrative escape hatch; everything else only deactivates.
func (s *ClientService) Delete(ctx context.Context, clientID, ip string) error {
	deleted, err := s.clientRepo.Delete(ctx, clientID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("Client")
	}

	if s.notifier != nil {
		s.notifier.CloseClient(clientID)
	}

	s.recorder.Record(ctx, &clientID, audit.ActionClientDeleted, "", ip)
	return nil
}

func (s *ClientService) Activity(ctx context.Context, clientID string, limit int) ([]model.ActivityLogEntry, error) {
	entries, err := s.activityRepo.FindByClientID(ctx, clientID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return entries, nil
}
