package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelink/hub-go/internal/audit"
	"github.com/homelink/hub-go/internal/database"
	"github.com/homelink/hub-go/internal/model"
	"github.com/homelink/hub-go/internal/repository"
	"github.com/homelink/hub-go/internal/service"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type stubSessionRepo struct {
	findLiveFunc func(ctx context.Context, pin string) (*model.PairingSession, error)
	markUsedFunc func(ctx context.Context, pin string) (int64, error)
}

func (m *stubSessionRepo) FindLiveByPin(ctx context.Context, pin string) (*model.PairingSession, error) {
	if m.findLiveFunc != nil {
		return m.findLiveFunc(ctx, pin)
	}
	return nil, nil
}

func (m *stubSessionRepo) Create(ctx context.Context, params model.CreatePairingSessionParams) (*model.PairingSession, error) {
	return &model.PairingSession{
		ID:        "7f1f9f66-0000-4000-8000-000000000001",
		Pin:       params.Pin,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (m *stubSessionRepo) MarkUsed(ctx context.Context, pin string) (int64, error) {
	if m.markUsedFunc != nil {
		return m.markUsedFunc(ctx, pin)
	}
	return 1, nil
}

func (m *stubSessionRepo) DeleteExpiredOrUsed(ctx context.Context) (int64, error) { return 0, nil }

func (m *stubSessionRepo) WithTx(tx *sqlx.Tx) repository.PairingSessionRepository { return m }

type stubClientRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Client, error)
	findAllFunc  func(ctx context.Context) ([]model.Client, error)
	updateFunc   func(ctx context.Context, id string, params model.UpdateClientParams) (bool, error)
	deleteFunc   func(ctx context.Context, id string) (bool, error)
}

func (m *stubClientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *stubClientRepo) FindByPublicKey(ctx context.Context, publicKey string) (*model.Client, error) {
	return nil, nil
}

func (m *stubClientRepo) FindAll(ctx context.Context) ([]model.Client, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx)
	}
	return nil, nil
}

func (m *stubClientRepo) Create(ctx context.Context, params model.CreateClientParams) (*model.Client, error) {
	return &model.Client{
		ID:          "9a8b7c6d-0000-4000-8000-000000000002",
		Name:        params.Name,
		DeviceType:  params.DeviceType,
		PublicKey:   params.PublicKey,
		Certificate: params.Certificate,
		IsActive:    true,
		PairedAt:    time.Now(),
		LastSeen:    time.Now(),
	}, nil
}

func (m *stubClientRepo) Update(ctx context.Context, id string, params model.UpdateClientParams) (bool, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, params)
	}
	return true, nil
}

func (m *stubClientRepo) Delete(ctx context.Context, id string) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return true, nil
}

func (m *stubClientRepo) WithTx(tx *sqlx.Tx) repository.ClientRepository { return m }

type stubActivityRepo struct{}

func (stubActivityRepo) Create(ctx context.Context, clientID *string, action, details, ip string) error {
	return nil
}

func (stubActivityRepo) FindByClientID(ctx context.Context, clientID string, limit int) ([]model.ActivityLogEntry, error) {
	return []model.ActivityLogEntry{}, nil
}

func newPairingHandler(sessions *stubSessionRepo, clients *stubClientRepo) *PairingHandler {
	svc := service.NewPairingService(stubTxRunner{}, sessions, clients, audit.NewRecorder(nil), 5*time.Minute)
	return NewPairingHandler(svc)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetPin(t *testing.T) {
	h := newPairingHandler(&stubSessionRepo{}, &stubClientRepo{})

	rec := httptest.NewRecorder()
	h.GetPin(rec, httptest.NewRequest(http.MethodGet, "/pairing/pin", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Regexp(t, `^\d{6}$`, body["pin"])
	assert.NotEmpty(t, body["expires_at"])
	assert.InDelta(t, 300, body["expires_in"], 2)
}

func TestCompletePairing(t *testing.T) {
	livePin := func(pin string) *model.PairingSession {
		return &model.PairingSession{
			ID:        "7f1f9f66-0000-4000-8000-000000000001",
			Pin:       pin,
			ExpiresAt: time.Now().Add(4 * time.Minute),
			CreatedAt: time.Now().Add(-time.Minute),
		}
	}

	completeRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/pairing/complete", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	validBody := `{
		"pin": "042137",
		"device_name": "Hallway Panel",
		"device_type": "wall_panel",
		"public_key": "4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b"
	}`

	t.Run("returns the client with its certificate", func(t *testing.T) {
		sessions := &stubSessionRepo{
			findLiveFunc: func(ctx context.Context, pin string) (*model.PairingSession, error) {
				return livePin(pin), nil
			},
		}
		h := newPairingHandler(sessions, &stubClientRepo{})

		rec := httptest.NewRecorder()
		h.Complete(rec, completeRequest(validBody))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["client_id"])
		assert.Len(t, body["certificate"], 64)
		assert.NotEmpty(t, body["paired_at"])
	})

	t.Run("unknown pin is a 401", func(t *testing.T) {
		h := newPairingHandler(&stubSessionRepo{}, &stubClientRepo{})

		rec := httptest.NewRecorder()
		h.Complete(rec, completeRequest(validBody))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "invalid or expired PIN", body["error"])
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		h := newPairingHandler(&stubSessionRepo{}, &stubClientRepo{})

		rec := httptest.NewRecorder()
		h.Complete(rec, completeRequest(`{"pin": "042137"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed JSON is a 400", func(t *testing.T) {
		h := newPairingHandler(&stubSessionRepo{}, &stubClientRepo{})

		rec := httptest.NewRecorder()
		h.Complete(rec, completeRequest(`{"pin": `))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
