package model

import "time"

type ActivityLogEntry struct {
	ID        int64     `db:"id" json:"id"`
	ClientID  *string   `db:"client_id" json:"clientId,omitempty"`
	Action    string    `db:"action" json:"action"`
	Details   string    `db:"details" json:"details"`
	IP        string    `db:"ip" json:"ip"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
