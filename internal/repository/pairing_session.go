package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/homelink/hub-go/internal/model"
)

type PairingSessionRepository interface {
	// FindLiveByPin returns the session for pin only while it is
	// unused and unexpired; nil otherwise.
	FindLiveByPin(ctx context.Context, pin string) (*model.PairingSession, error)
	Create(ctx context.Context, params model.CreatePairingSessionParams) (*model.PairingSession, error)
	// MarkUsed consumes the session and reports how many rows were
	// touched. Exactly one concurrent caller observes rowsAffected=1;
	// everyone else gets 0.
	MarkUsed(ctx context.Context, pin string) (int64, error)
	DeleteExpiredOrUsed(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairingSessionRepository
}

// pairingSessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type pairingSessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type pairingSessionRepo struct {
	db pairingSessionDB
}

func NewPairingSessionRepository(db *sqlx.DB) PairingSessionRepository {
	return &pairingSessionRepo{db: db}
}

func (r *pairingSessionRepo) WithTx(tx *sqlx.Tx) PairingSessionRepository {
	return &pairingSessionRepo{db: tx}
}

func (r *pairingSessionRepo) FindLiveByPin(ctx context.Context, pin string) (*model.PairingSession, error) {
	var ps model.PairingSession
	err := r.db.GetContext(ctx, &ps, `
		SELECT * FROM pairing_sessions
		WHERE pin = $1 AND used = FALSE AND expires_at > NOW()
	`, pin)
	return HandleNotFound(&ps, err)
}

func (r *pairingSessionRepo) Create(ctx context.Context, params model.CreatePairingSessionParams) (*model.PairingSession, error) {
	var ps model.PairingSession
	err := r.db.GetContext(ctx, &ps, `
		INSERT INTO pairing_sessions (pin, expires_at)
		VALUES ($1, $2)
		RETURNING *
	`, params.Pin, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

func (r *pairingSessionRepo) MarkUsed(ctx context.Context, pin string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_sessions SET used = TRUE
		WHERE pin = $1 AND used = FALSE AND expires_at > NOW()
	`, pin)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingSessionRepo) DeleteExpiredOrUsed(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_sessions
		WHERE expires_at < NOW() OR used = TRUE
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
