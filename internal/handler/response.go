package handler

import (
	"net/http"
	"time"

	"github.com/homelink/hub-go/internal/httputil"
	"github.com/homelink/hub-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// formatClient renders a Client for the management surface. The
// certificate never appears here; it is transmitted exactly once, in
// the pairing completion response.
func formatClient(c model.Client) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"name":        c.Name,
		"device_type": c.DeviceType,
		"public_key":  c.PublicKey,
		"is_active":   c.IsActive,
		"paired_at":   c.PairedAt.Format(time.RFC3339),
		"last_seen":   c.LastSeen.Format(time.RFC3339),
	}
}
