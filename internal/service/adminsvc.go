package service

import (
	"context"

	"coffeestatsweb/internal/domain"
)

type AdminUsersStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// AdminService backs the moderation screens. Application workflow actions
// live on ApplicationService; this only covers what is admin-exclusive.
type AdminService struct {
	Users AdminUsersStore
}

func (s *AdminService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return s.Users.ListUsers(ctx, limit, offset)
}
