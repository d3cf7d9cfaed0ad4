package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"srg/internal/apperr"
	"srg/internal/models"
)

// FindActiveReminder looks for an open reminder already linked to the given
// namespaced entity type/id, so the insight evaluator can dedupe before
// creating a new one.
func (s *Store) FindActiveReminder(ctx context.Context, linkedEntityType, linkedEntityID string) (*models.Reminder, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, title, message, severity, linked_entity_type, linked_entity_id, status, created_at, due_at
FROM reminders WHERE linked_entity_type = $1 AND linked_entity_id = $2 AND status = 'open' LIMIT 1`, linkedEntityType, linkedEntityID)
	r := &models.Reminder{}
	err := row.Scan(&r.ID, &r.Title, &r.Message, &r.Severity, &r.LinkedEntityType, &r.LinkedEntityID, &r.Status, &r.CreatedAt, &r.DueAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Database("find_active_reminder", err)
	}
	return r, true, nil
}

// InsertReminder creates a new reminder, user-created or derived.
func (s *Store) InsertReminder(ctx context.Context, r *models.Reminder) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO reminders (id, title, message, severity, linked_entity_type, linked_entity_id, status, created_at, due_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.Title, r.Message, r.Severity, nullIfEmpty(r.LinkedEntityType), nullIfEmpty(r.LinkedEntityID), r.Status, r.CreatedAt, r.DueAt)
	if err != nil {
		return apperr.Database("insert_reminder", err)
	}
	return nil
}

// ListReminders returns reminders, optionally filtered to a status.
func (s *Store) ListReminders(ctx context.Context, status models.ReminderStatus) ([]models.Reminder, error) {
	query := `SELECT id, title, message, severity, COALESCE(linked_entity_type,''), COALESCE(linked_entity_id,''), status, created_at, due_at FROM reminders`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Database("list_reminders", err)
	}
	defer rows.Close()
	var out []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.Title, &r.Message, &r.Severity, &r.LinkedEntityType, &r.LinkedEntityID, &r.Status, &r.CreatedAt, &r.DueAt); err != nil {
			return nil, apperr.Database("scan_reminder", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateReminderStatus transitions a reminder's status (done/dismissed).
func (s *Store) UpdateReminderStatus(ctx context.Context, id string, status models.ReminderStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE reminders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return apperr.Database("update_reminder_status", err)
	}
	return nil
}
