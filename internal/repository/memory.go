package repository

import (
	"context"
	"sync"
	"time"

	"cabanas/internal/models"
)

type memoryEntry struct {
	view      *models.MonthAvailability
	expiresAt time.Time
}

// MemoryAvailabilityCache is the single-process fallback used when
// Redis is unreachable or disabled in config.
type MemoryAvailabilityCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryAvailabilityCache() *MemoryAvailabilityCache {
	return &MemoryAvailabilityCache{
		entries: make(map[string]memoryEntry),
	}
}

func (r *MemoryAvailabilityCache) GetMonth(ctx context.Context, unitID int64, year int, month time.Month) (*models.MonthAvailability, error) {
	key := monthKey(unitID, year, month)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		r.mu.Lock()
		delete(r.entries, key)
		r.mu.Unlock()
		return nil, nil
	}
	return entry.view, nil
}

func (r *MemoryAvailabilityCache) SetMonth(ctx context.Context, view *models.MonthAvailability, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := monthKey(view.UnitID, view.Year, view.Month)
	r.mu.Lock()
	r.entries[key] = memoryEntry{view: view, expiresAt: time.Now().Add(ttl)}
	r.mu.Unlock()
	return nil
}

func (r *MemoryAvailabilityCache) InvalidateUnit(ctx context.Context, unitID int64) error {
	prefix := unitPrefix(unitID)
	r.mu.Lock()
	for key := range r.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()
	return nil
}
