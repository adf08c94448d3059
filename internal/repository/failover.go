package repository

import (
	"context"
	"sync/atomic"
	"time"

	"cabanas/internal/domain"
	"cabanas/internal/models"

	"github.com/rs/zerolog"
)

// FailoverAvailabilityCache serves from the primary cache and drops to
// the fallback when the primary errors, retrying the primary after a
// minute. A cache outage must never make availability reads fail.
type FailoverAvailabilityCache struct {
	primary   domain.AvailabilityCache
	fallback  domain.AvailabilityCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverAvailabilityCache(primary, fallback domain.AvailabilityCache, logger *zerolog.Logger) *FailoverAvailabilityCache {
	return &FailoverAvailabilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAvailabilityCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary availability cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverAvailabilityCache) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverAvailabilityCache) GetMonth(ctx context.Context, unitID int64, year int, month time.Month) (*models.MonthAvailability, error) {
	if !r.isDown.Load() {
		view, err := r.primary.GetMonth(ctx, unitID, year, month)
		if err == nil {
			return view, nil
		}
		r.markDown(err)
	}

	if r.isDown.Load() && r.shouldRetryPrimary() {
		view, err := r.primary.GetMonth(ctx, unitID, year, month)
		if err == nil {
			r.isDown.Store(false)
			return view, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetMonth(ctx, unitID, year, month)
}

func (r *FailoverAvailabilityCache) SetMonth(ctx context.Context, view *models.MonthAvailability, ttl time.Duration) error {
	if !r.isDown.Load() {
		err := r.primary.SetMonth(ctx, view, ttl)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetMonth(ctx, view, ttl)
}

func (r *FailoverAvailabilityCache) InvalidateUnit(ctx context.Context, unitID int64) error {
	// Invalidate both sides: entries written before a failover would
	// otherwise survive in whichever cache is not current.
	ferr := r.fallback.InvalidateUnit(ctx, unitID)

	if !r.isDown.Load() {
		if err := r.primary.InvalidateUnit(ctx, unitID); err != nil {
			r.markDown(err)
			return ferr
		}
	}
	return ferr
}
