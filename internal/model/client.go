package model

import (
	"encoding/json"
	"time"
)

type Client struct {
	ID          string           `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	DeviceType  string           `db:"device_type" json:"deviceType"`
	PublicKey   string           `db:"public_key" json:"publicKey"`
	Certificate string           `db:"certificate" json:"-"`
	Metadata    *json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	IsActive    bool             `db:"is_active" json:"isActive"`
	PairedAt    time.Time        `db:"paired_at" json:"pairedAt"`
	LastSeen    time.Time        `db:"last_seen" json:"lastSeen"`
}

type CreateClientParams struct {
	Name        string
	DeviceType  string
	PublicKey   string
	Certificate string
	Metadata    *json.RawMessage
}

// UpdateClientParams carries partial updates; nil fields are left unchanged.
type UpdateClientParams struct {
	LastSeen *time.Time
	IsActive *bool
}
