package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrOverlap     = errors.New("booking overlaps an active booking")
	ErrStaleStatus = errors.New("booking status changed concurrently")
	ErrDuplicate   = errors.New("record already exists")
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
