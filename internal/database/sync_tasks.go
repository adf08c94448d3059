package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cabanas/internal/models"
)

// CreateSyncTask persists a queued Sheets operation. The worker pushes
// the task to Redis after the row exists, so a crash between the two
// steps only delays the task until the next poll.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = "pending"
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO sync_tasks (task_type, booking_id, payload, status, retry_count, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, '', ?, ?)`,
		task.TaskType, task.BookingID, task.Payload, task.Status, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	task.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read sync task id: %w", err)
	}
	return nil
}

// GetPendingSyncTasks returns tasks ready to run: pending ones plus
// retries whose backoff has elapsed.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, task_type, booking_id, payload, status, retry_count, last_error, next_retry_at, created_at, updated_at
		 FROM sync_tasks
		 WHERE status = 'pending' OR (status = 'retry' AND next_retry_at <= ?)
		 ORDER BY created_at
		 LIMIT ?`,
		time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		var nextRetry sql.NullTime
		if err := rows.Scan(&t.ID, &t.TaskType, &t.BookingID, &t.Payload, &t.Status,
			&t.RetryCount, &t.LastError, &nextRetry, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		if nextRetry.Valid {
			t.NextRetryAt = &nextRetry.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateSyncTaskStatus moves a task between queue states. A retry bumps
// retry_count and records the next attempt time.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error {
	var next interface{}
	if nextRetryAt != nil {
		next = nextRetryAt.UTC()
	}
	bump := 0
	if status == "retry" {
		bump = 1
	}
	_, err := db.ExecContext(ctx,
		`UPDATE sync_tasks
		 SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + ?, updated_at = ?
		 WHERE id = ?`,
		status, lastError, next, bump, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sync task %d: %w", id, err)
	}
	return nil
}
