package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
}

type PGUserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PGUserRepository{db: db}
}

func (r *PGUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `SELECT id, name, email, is_admin, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Upsert refreshes profile fields. The administrator flag is only set on insert.
func (r *PGUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	return r.db.QueryRow(ctx, `INSERT INTO users (id, name, email, is_admin) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email
		RETURNING is_admin, created_at`,
		user.ID, user.Name, user.Email, user.IsAdmin).Scan(&user.IsAdmin, &user.CreatedAt)
}

var _ UserRepository = (*PGUserRepository)(nil)
