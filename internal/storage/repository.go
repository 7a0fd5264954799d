package storage

import (
	"context"

	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Bookings() bookings.Repository

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Ping(ctx context.Context) error
}
