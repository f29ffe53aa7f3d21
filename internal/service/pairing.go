package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/homelink/hub-go/internal/audit"
	"github.com/homelink/hub-go/internal/database"
	apperrors "github.com/homelink/hub-go/internal/errors"
	"github.com/homelink/hub-go/internal/model"
	"github.com/homelink/hub-go/internal/repository"
	"github.com/homelink/hub-go/internal/util"
)

const pinGenerationAttempts = 10

// txRunner is satisfied by *database.DB; tests substitute a runner
// that hands the callback a nil transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type CompletePairingParams struct {
	Pin        string
	DeviceName string
	DeviceType string
	PublicKey  string
	Metadata   map[string]any
	IP         string
}

// PairingService issues short-lived PINs and turns a valid PIN plus a
// fresh public key into a paired Client holding its trust certificate.
type PairingService struct {
	db          txRunner
	sessionRepo repository.PairingSessionRepository
	clientRepo  repository.ClientRepository
	recorder    *audit.Recorder
	pinTTL      time.Duration
}

func NewPairingService(
	db txRunner,
	sessionRepo repository.PairingSessionRepository,
	clientRepo repository.ClientRepository,
	recorder *audit.Recorder,
	pinTTL time.Duration,
) *PairingService {
	return &PairingService{
		db:          db,
		sessionRepo: sessionRepo,
		clientRepo:  clientRepo,
		recorder:    recorder,
		pinTTL:      pinTTL,
	}
}

// GeneratePin creates a pairing session with a uniformly random
// six-digit code. A candidate colliding with a live (unused, unexpired)
// session is redrawn — including when a concurrent caller wins the
// insert race and the unique index rejects ours. Expired sessions
// awaiting the sweep do not block reuse of their PIN value.
func (s *PairingService) GeneratePin(ctx context.Context, ip string) (*model.PairingSession, error) {
	for attempt := 0; attempt < pinGenerationAttempts; attempt++ {
		candidate, err := util.GeneratePin()
		if err != nil {
			return nil, fmt.Errorf("generate pin: %w", err)
		}

		live, err := s.sessionRepo.FindLiveByPin(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("check pin collision: %w", err)
		}
		if live != nil {
			continue
		}

		session, err := s.sessionRepo.Create(ctx, model.CreatePairingSessionParams{
			Pin:       candidate,
			ExpiresAt: time.Now().Add(s.pinTTL),
		})
		if repository.IsUniqueViolation(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create pairing session: %w", err)
		}

		log.Info().
			Str("pin", util.MaskPin(candidate)).
			Time("expiresAt", session.ExpiresAt).
			Msg("pairing pin issued")

		s.recorder.Record(ctx, nil, audit.ActionPinGenerated, "", ip)

		return session, nil
	}

	return nil, fmt.Errorf("no free PIN after %d attempts", pinGenerationAttempts)
}

// CompletePairing consumes a live PIN and binds the supplied public key
// to a new Client. The session mark-used and the client insert commit
// together; losing the mark-used race rolls the client back, so exactly
// one caller ever consumes a given PIN.
func (s *PairingService) CompletePairing(ctx context.Context, params CompletePairingParams) (*model.Client, error) {
	if err := validateCompletePairing(params); err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindLiveByPin(ctx, params.Pin)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || time.Now().After(session.ExpiresAt) {
		s.recorder.Record(ctx, nil, audit.ActionPairingFailed, "invalid or expired PIN", params.IP)
		return nil, apperrors.InvalidPin()
	}

	existing, err := s.clientRepo.FindByPublicKey(ctx, params.PublicKey)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		s.recorder.Record(ctx, &existing.ID, audit.ActionPairingFailed, "public key already paired", params.IP)
		return nil, apperrors.AlreadyPaired()
	}

	certificate, err := util.DeriveCertificate(params.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("derive certificate: %w", err)
	}

	var metadata *json.RawMessage
	if params.Metadata != nil {
		data, _ := json.Marshal(params.Metadata)
		raw := json.RawMessage(data)
		metadata = &raw
	}

	var client *model.Client
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		created, err := s.clientRepo.WithTx(tx).Create(ctx, model.CreateClientParams{
			Name:        params.DeviceName,
			DeviceType:  params.DeviceType,
			PublicKey:   params.PublicKey,
			Certificate: certificate,
			Metadata:    metadata,
		})
		if err != nil {
			return err
		}

		affected, err := s.sessionRepo.WithTx(tx).MarkUsed(ctx, params.Pin)
		if err != nil {
			return err
		}
		if affected != 1 {
			// Another completion already consumed this PIN.
			return apperrors.InvalidPin()
		}

		client = created
		return nil
	})
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			s.recorder.Record(ctx, nil, audit.ActionPairingFailed, appErr.Message, params.IP)
			return nil, appErr
		}
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("clientId", client.ID).
		Str("deviceType", client.DeviceType).
		Msg("pairing completed")

	s.recorder.Record(ctx, &client.ID, audit.ActionPairingCompleted,
		fmt.Sprintf("device %q (%s)", client.Name, client.DeviceType), params.IP)

	return client, nil
}

func validateCompletePairing(params CompletePairingParams) error {
	if !util.IsValidPin(params.Pin) {
		return apperrors.InvalidInput("pin", "must be a six-digit code")
	}
	if params.DeviceName == "" {
		return apperrors.MissingRequired("device_name")
	}
	if params.DeviceType == "" {
		return apperrors.MissingRequired("device_type")
	}
	if params.PublicKey == "" {
		return apperrors.MissingRequired("public_key")
	}
	return nil
}
