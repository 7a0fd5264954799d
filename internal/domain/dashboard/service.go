package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/users"
	"golang.org/x/sync/errgroup"
)

type BookingLister interface {
	ListForCoach(ctx context.Context, coachID string) ([]bookings.View, error)
	ListForCoachee(ctx context.Context, coacheeID string) ([]bookings.View, error)
}

type DirectoryLister interface {
	Directory(ctx context.Context) ([]users.DirectoryEntry, error)
}

// View is a composed dashboard.
type View struct {
	Route     Route
	Bookings  []bookings.View
	Buckets   Buckets
	Directory []users.DirectoryEntry
}

// snapshot is what the cache stores; buckets depend on the request time and
// are recomputed on every read.
type snapshot struct {
	bookings  []bookings.View
	directory []users.DirectoryEntry
}

type Service struct {
	bookings  BookingLister
	directory DirectoryLister
	cache     *Cache
}

func NewService(bookingLister BookingLister, directory DirectoryLister, cache *Cache) *Service {
	return &Service{bookings: bookingLister, directory: directory, cache: cache}
}

// CoachView lists sessions where the caller is the coach, with coachee and
// coachee position, plus the user directory for scheduling.
func (s *Service) CoachView(ctx context.Context, caller auth.Identity, now time.Time) (*View, error) {
	return s.compose(ctx, caller, RouteCoach, now, s.bookings.ListForCoach)
}

// CoacheeView lists sessions where the caller is the coachee, with coach,
// plus the coach directory.
func (s *Service) CoacheeView(ctx context.Context, caller auth.Identity, now time.Time) (*View, error) {
	return s.compose(ctx, caller, RouteCoachee, now, s.bookings.ListForCoachee)
}

// Landing is where the caller should be sent next.
func (s *Service) Landing(caller auth.Identity) string {
	return auth.Landing(caller)
}

func (s *Service) compose(
	ctx context.Context,
	caller auth.Identity,
	route Route,
	now time.Time,
	list func(context.Context, string) ([]bookings.View, error),
) (*View, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}

	snap, ok := s.cache.get(route, caller.ID)
	if !ok {
		gen := s.cache.generation()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rows, err := list(gctx, caller.ID)
			if err != nil {
				return fmt.Errorf("list %s bookings: %w", route, err)
			}
			snap.bookings = rows
			return nil
		})
		g.Go(func() error {
			entries, err := s.directory.Directory(gctx)
			if err != nil {
				return fmt.Errorf("load directory: %w", err)
			}
			snap.directory = entries
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		s.cache.put(route, caller.ID, snap, gen)
	}

	return &View{
		Route:     route,
		Bookings:  snap.bookings,
		Buckets:   Partition(snap.bookings, now),
		Directory: snap.directory,
	}, nil
}
