package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"travelhub/api/internal/models"
)

var ErrIdentityNotFound = errors.New("identity not found")

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) Create(ctx context.Context, identity models.Identity) error {
	const query = `
		INSERT INTO auth_identities (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query, identity.ID, identity.Email, identity.PasswordHash)
	return err
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (models.Identity, error) {
	const query = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM auth_identities WHERE email = $1
	`

	row := r.pool.QueryRow(ctx, query, email)
	var identity models.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Identity{}, ErrIdentityNotFound
		}
		return models.Identity{}, err
	}
	return identity, nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, email string, passwordHash []byte) error {
	const query = `UPDATE auth_identities SET password_hash = $2, updated_at = NOW() WHERE email = $1`
	cmd, err := r.pool.Exec(ctx, query, email, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}
