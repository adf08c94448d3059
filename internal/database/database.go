package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"cabanas/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the calendar store: bookings and admin blocks in SQLite, plus an
// in-memory cache of the units loaded from configuration. SQLite
// serializes writers, so the transactional overlap re-check in CreateHold
// is the real arbiter between concurrent hold attempts.
type DB struct {
	*sql.DB

	mu          sync.RWMutex
	unitsCache  map[int64]models.Unit
	unitsBySlug map[string]models.Unit
	sortedUnits []models.Unit

	log zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{
		DB:          sqlDB,
		unitsCache:  make(map[int64]models.Unit),
		unitsBySlug: make(map[string]models.Unit),
		log:         log,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            unit_id INTEGER NOT NULL,
            unit_name TEXT NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            party_size INTEGER NOT NULL,
            jacuzzi_days TEXT NOT NULL DEFAULT '[]',
            towels INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            price_nights INTEGER NOT NULL DEFAULT 0,
            price_base INTEGER NOT NULL DEFAULT 0,
            price_extra_guests INTEGER NOT NULL DEFAULT 0,
            price_jacuzzi INTEGER NOT NULL DEFAULT 0,
            price_towels INTEGER NOT NULL DEFAULT 0,
            price_total INTEGER NOT NULL DEFAULT 0,
            customer_name TEXT NOT NULL DEFAULT '',
            customer_email TEXT NOT NULL DEFAULT '',
            customer_phone TEXT NOT NULL DEFAULT '',
            expires_at DATETIME,
            paid_at DATETIME,
            canceled_at DATETIME,
            flow_order_id TEXT NOT NULL DEFAULT '',
            payment_token TEXT NOT NULL DEFAULT '',
            gateway_status TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS admin_blocks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            unit_id INTEGER NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS sync_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_type TEXT NOT NULL,
			booking_id TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			next_retry_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_unit_dates ON bookings(unit_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_flow_order ON bookings(flow_order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_unit_dates ON admin_blocks(unit_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_tasks_status ON sync_tasks(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetUnits replaces the cached unit catalog.
func (db *DB) SetUnits(units []models.Unit) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.unitsCache = make(map[int64]models.Unit, len(units))
	db.unitsBySlug = make(map[string]models.Unit, len(units))
	for _, u := range units {
		db.unitsCache[u.ID] = u
		db.unitsBySlug[u.Slug] = u
	}

	sorted := append([]models.Unit(nil), units...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SortOrder == sorted[j].SortOrder {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].SortOrder < sorted[j].SortOrder
	})
	db.sortedUnits = sorted
}

// GetUnits returns the unit catalog in display order.
func (db *DB) GetUnits() []models.Unit {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]models.Unit(nil), db.sortedUnits...)
}

func (db *DB) GetUnitByID(id int64) (models.Unit, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.unitsCache[id]
	if !ok {
		return models.Unit{}, fmt.Errorf("unit %d: %w", id, ErrNotFound)
	}
	return u, nil
}

func (db *DB) GetUnitBySlug(slug string) (models.Unit, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.unitsBySlug[slug]
	if !ok {
		return models.Unit{}, fmt.Errorf("unit %q: %w", slug, ErrNotFound)
	}
	return u, nil
}
