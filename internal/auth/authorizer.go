package auth

import (
	"context"
	"errors"

	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/repository"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type Authorizer struct {
	users UserReader
}

func NewAuthorizer(users UserReader) *Authorizer {
	return &Authorizer{users: users}
}

func RequireCaller(callerID string) error {
	if callerID == "" {
		return domain.AuthError("authentication required")
	}
	return nil
}

// IsAdmin reads the caller's persisted record. Unknown users are not administrators.
func (a *Authorizer) IsAdmin(ctx context.Context, callerID string) (bool, error) {
	if err := RequireCaller(callerID); err != nil {
		return false, err
	}
	user, err := a.users.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, domain.NewError(domain.KindInternal, "load caller", err)
	}
	return user.IsAdmin, nil
}

func (a *Authorizer) RequireAdmin(ctx context.Context, callerID string) error {
	ok, err := a.IsAdmin(ctx, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.PermissionError("administrator privilege required")
	}
	return nil
}

// RequireOwnerOrAdmin allows the booking owner or an administrator.
func (a *Authorizer) RequireOwnerOrAdmin(ctx context.Context, callerID, ownerID string) error {
	if err := RequireCaller(callerID); err != nil {
		return err
	}
	if callerID == ownerID {
		return nil
	}
	return a.RequireAdmin(ctx, callerID)
}
