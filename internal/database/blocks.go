package database

import (
	"context"
	"fmt"
	"time"

	"cabanas/internal/models"
)

func (db *DB) CreateBlock(ctx context.Context, block *models.AdminBlock) error {
	query := `INSERT INTO admin_blocks (unit_id, start_date, end_date, reason, created_at)
        VALUES (?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		block.UnitID,
		block.StartDate.Format(models.DateLayout),
		block.EndDate.Format(models.DateLayout),
		block.Reason,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin block: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	block.ID = id
	block.CreatedAt = now
	return nil
}

func (db *DB) DeleteBlock(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM admin_blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete admin block: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("admin block %d: %w", id, ErrNotFound)
	}
	return nil
}

// BlocksIntersecting returns admin blocks overlapping [from, to) for one unit.
func (db *DB) BlocksIntersecting(ctx context.Context, unitID int64, from, to time.Time) ([]*models.AdminBlock, error) {
	query := `SELECT id, unit_id, start_date, end_date, reason, created_at
        FROM admin_blocks
        WHERE unit_id = ? AND start_date < ? AND end_date > ?
        ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, query,
		unitID, to.Format(models.DateLayout), from.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get intersecting blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*models.AdminBlock
	for rows.Next() {
		b := &models.AdminBlock{}
		var startStr, endStr string
		if err := rows.Scan(&b.ID, &b.UnitID, &startStr, &endStr, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin block: %w", err)
		}
		if b.StartDate, err = time.Parse(models.DateLayout, startStr); err != nil {
			return nil, fmt.Errorf("failed to parse block start date %s: %w", startStr, err)
		}
		if b.EndDate, err = time.Parse(models.DateLayout, endStr); err != nil {
			return nil, fmt.Errorf("failed to parse block end date %s: %w", endStr, err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blocks, nil
}
