package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// ProfileRepository loads staff profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository instantiates the repository.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (display_name, email, password_hash, department)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	var department *string
	if profile.Department != nil {
		d := string(*profile.Department)
		department = &d
	}
	return r.pool.QueryRow(ctx, query,
		profile.DisplayName,
		profile.Email,
		profile.PasswordHash,
		department,
	).Scan(&profile.ID, &profile.CreatedAt)
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `
        SELECT id, display_name, email, password_hash, department, created_at
        FROM profiles WHERE id=$1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	const query = `
        SELECT id, display_name, email, password_hash, department, created_at
        FROM profiles WHERE lower(email)=lower($1)`
	return scanProfile(r.pool.QueryRow(ctx, query, email))
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var profile domain.Profile
	if err := row.Scan(
		&profile.ID,
		&profile.DisplayName,
		&profile.Email,
		&profile.PasswordHash,
		&profile.Department,
		&profile.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}
