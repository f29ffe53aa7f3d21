package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/homelink/hub-go/internal/model"
)

type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*model.Client, error)
	FindByPublicKey(ctx context.Context, publicKey string) (*model.Client, error)
	FindAll(ctx context.Context) ([]model.Client, error)
	Create(ctx context.Context, params model.CreateClientParams) (*model.Client, error)
	// Update applies the non-nil fields of params and reports whether
	// a row was touched.
	Update(ctx context.Context, id string, params model.UpdateClientParams) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ClientRepository
}

type clientDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type clientRepo struct {
	db clientDB
}

func NewClientRepository(db *sqlx.DB) ClientRepository {
	return &clientRepo{db: db}
}

func (r *clientRepo) WithTx(tx *sqlx.Tx) ClientRepository {
	return &clientRepo{db: tx}
}

func (r *clientRepo) FindByID(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := r.db.GetContext(ctx, &c, `
		SELECT * FROM clients WHERE id = $1
	`, id)
	return HandleNotFound(&c, err)
}

func (r *clientRepo) FindByPublicKey(ctx context.Context, publicKey string) (*model.Client, error) {
	var c model.Client
	err := r.db.GetContext(ctx, &c, `
		SELECT * FROM clients WHERE public_key = $1
	`, publicKey)
	return HandleNotFound(&c, err)
}

func (r *clientRepo) FindAll(ctx context.Context) ([]model.Client, error) {
	var clients []model.Client
	err := r.db.SelectContext(ctx, &clients, `
		SELECT * FROM clients ORDER BY paired_at DESC
	`)
	return clients, err
}

func (r *clientRepo) Create(ctx context.Context, params model.CreateClientParams) (*model.Client, error) {
	var c model.Client
	err := r.db.GetContext(ctx, &c, `
		INSERT INTO clients (name, device_type, public_key, certificate, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Name, params.DeviceType, params.PublicKey, params.Certificate, params.Metadata)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) Update(ctx context.Context, id string, params model.UpdateClientParams) (bool, error) {
	sets := []string{}
	args := []interface{}{id}

	if params.LastSeen != nil {
		args = append(args, *params.LastSeen)
		sets = append(sets, fmt.Sprintf("last_seen = $%d", len(args)))
	}
	if params.IsActive != nil {
		args = append(args, *params.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
	}

	if len(sets) == 0 {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE clients SET %s WHERE id = $1
	`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

func (r *clientRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM clients WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}
