package model

import "time"

type PairingSession struct {
	ID        string    `db:"id" json:"id"`
	Pin       string    `db:"pin" json:"pin"`
	Used      bool      `db:"used" json:"used"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

type CreatePairingSessionParams struct {
	Pin       string
	ExpiresAt time.Time
}
