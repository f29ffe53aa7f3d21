package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/homelink/hub-go/internal/audit"
	"github.com/homelink/hub-go/internal/service"
)

type PairingHandler struct {
	pairing *service.PairingService
}

func NewPairingHandler(pairing *service.PairingService) *PairingHandler {
	return &PairingHandler{pairing: pairing}
}

// GetPin issues a fresh pairing PIN. Unauthenticated; the PIN itself
// is the secret and it expires in minutes.
func (h *PairingHandler) GetPin(w http.ResponseWriter, r *http.Request) {
	session, err := h.pairing.GeneratePin(r.Context(), audit.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pin":        session.Pin,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
		"expires_in": int(time.Until(session.ExpiresAt).Seconds()),
	})
}

type completePairingRequest struct {
	Pin        string         `json:"pin"`
	DeviceName string         `json:"device_name"`
	DeviceType string         `json:"device_type"`
	PublicKey  string         `json:"public_key"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Complete consumes a PIN and returns the new client with its
// certificate. The certificate is never re-sent afterward.
func (h *PairingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req completePairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	client, err := h.pairing.CompletePairing(r.Context(), service.CompletePairingParams{
		Pin:        req.Pin,
		DeviceName: req.DeviceName,
		DeviceType: req.DeviceType,
		PublicKey:  req.PublicKey,
		Metadata:   req.Metadata,
		IP:         audit.ClientIP(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"client_id":   client.ID,
		"certificate": client.Certificate,
		"paired_at":   client.PairedAt.Format(time.RFC3339),
	})
}
