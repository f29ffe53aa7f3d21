package model

import (
	"time"
)

// AdminSession is a logged-in dashboard session guarding the client
// management surface. Only the HMAC of the bearer token is stored.
type AdminSession struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateAdminSessionParams struct {
	TokenHash string
	ExpiresAt time.Time
}
