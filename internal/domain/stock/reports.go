package stock

import (
	"context"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

const (
	topProductsLimit = 5
	dashboardLimit   = 10

	cacheKeyStats     = "stats"
	cacheKeyDashboard = "dashboard"
)

// GetStats returns the tenant-wide rollup, served from cache when possible.
func (s *Service) GetStats(ctx context.Context, p Principal) (*Stats, error) {
	return guarded(ctx, s, p, security.ActionRead, "get_stats", func(ctx context.Context, repo Repository) (*Stats, error) {
		return s.stats(ctx, repo)
	})
}

// GetDashboard composes stats, the lowest items, recent movements and the
// latest active reservations.
func (s *Service) GetDashboard(ctx context.Context, p Principal) (*Dashboard, error) {
	return guarded(ctx, s, p, security.ActionRead, "get_dashboard", func(ctx context.Context, repo Repository) (*Dashboard, error) {
		var cached Dashboard
		hit, gen, cacheOK := s.loadCached(ctx, repo, cacheKeyDashboard, &cached)
		if hit {
			return &cached, nil
		}

		stats, err := s.stats(ctx, repo)
		if err != nil {
			return nil, err
		}

		lowStock, _, err := repo.ListItems(ctx, ItemFilter{
			ListFilter: ListFilter{OrderBy: "quantity", Limit: dashboardLimit},
			LowStock:   true,
		})
		if err != nil {
			return nil, err
		}

		recent, _, err := repo.ListMovements(ctx, MovementFilter{
			ListFilter: ListFilter{OrderBy: "-created_at", Limit: dashboardLimit},
		})
		if err != nil {
			return nil, err
		}

		active := ReservationActive
		reservations, _, err := repo.ListReservations(ctx, ReservationFilter{
			ListFilter: ListFilter{OrderBy: "-created_at", Limit: dashboardLimit},
			Status:     &active,
		})
		if err != nil {
			return nil, err
		}

		d := &Dashboard{
			Stats:              *stats,
			LowStock:           nonNilSlice(lowStock),
			RecentMovements:    nonNilSlice(recent),
			ActiveReservations: nonNilSlice(reservations),
		}
		if cacheOK {
			s.storeCached(ctx, repo, cacheKeyDashboard, gen, d)
		}
		return d, nil
	})
}

func (s *Service) stats(ctx context.Context, repo Repository) (*Stats, error) {
	var cached Stats
	hit, gen, cacheOK := s.loadCached(ctx, repo, cacheKeyStats, &cached)
	if hit {
		return &cached, nil
	}

	stats, err := repo.Stats(ctx, topProductsLimit)
	if err != nil {
		return nil, err
	}
	if stats.TopProducts == nil {
		stats.TopProducts = []ProductValue{}
	}
	if cacheOK {
		s.storeCached(ctx, repo, cacheKeyStats, gen, stats)
	}
	return stats, nil
}

// Cache failures degrade to a database read; they never fail the request.
// ok is false when the generation is unknown, and the caller must not store.
func (s *Service) loadCached(ctx context.Context, repo Repository, key string, dst any) (hit bool, gen int64, ok bool) {
	gen, hit, err := s.cache.Load(ctx, repo.TenantID(), key, dst)
	if err != nil {
		s.log.WithContext(ctx).Warnw("cache load failed", "key", key, "error", err)
		return false, 0, false
	}
	return hit, gen, true
}

// storeCached writes a value read under gen; a newer generation drops it.
func (s *Service) storeCached(ctx context.Context, repo Repository, key string, gen int64, value any) {
	if err := s.cache.Store(ctx, repo.TenantID(), key, gen, value); err != nil {
		s.log.WithContext(ctx).Warnw("cache store failed", "key", key, "error", err)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
