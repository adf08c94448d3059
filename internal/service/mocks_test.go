package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cabanas/internal/database"
	"cabanas/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, units ...models.Unit) *database.DB {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	if len(units) == 0 {
		units = []models.Unit{rustica}
	}
	db.SetUnits(units)
	return db
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendBookingConfirmation(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyBookingPaid(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueUpsert(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockSyncWorker) EnqueueStatus(ctx context.Context, bookingID string, status string) error {
	args := m.Called(ctx, bookingID, status)
	return args.Error(0)
}

// recordingCache captures SetMonth calls so tests can inspect the TTL
// the availability service chose.
type recordingCache struct {
	mu      sync.Mutex
	entries map[string]*models.MonthAvailability
	lastTTL time.Duration
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]*models.MonthAvailability)}
}

func (c *recordingCache) key(unitID int64, year int, month time.Month) string {
	return fmt.Sprintf("%d:%04d-%02d", unitID, year, month)
}

func (c *recordingCache) GetMonth(ctx context.Context, unitID int64, year int, month time.Month) (*models.MonthAvailability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[c.key(unitID, year, month)], nil
}

func (c *recordingCache) SetMonth(ctx context.Context, view *models.MonthAvailability, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(view.UnitID, view.Year, view.Month)] = view
	c.lastTTL = ttl
	return nil
}

func (c *recordingCache) InvalidateUnit(ctx context.Context, unitID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := fmt.Sprintf("%d:", unitID)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
