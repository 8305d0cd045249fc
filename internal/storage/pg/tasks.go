package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/unifeed-dev/unifeed/internal/queue"
)

// EnqueueTask schedules a task for execution at runAt.
func (s *Storage) EnqueueTask(ctx context.Context, kind string, payload any, runAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(kind, payload, run_at) VALUES($1, $2, $3)`,
		kind, body, runAt.UTC())
	return err
}

// DequeueTask claims the next due task, leasing it until now+lease so a
// crashed worker's task is re-delivered instead of lost. Returns nil when
// nothing is due. FOR UPDATE SKIP LOCKED keeps concurrent workers off the
// same row.
func (s *Storage) DequeueTask(ctx context.Context, lease time.Duration) (*queue.Task, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
	UPDATE tasks SET locked_until = $1, attempts = attempts + 1
	WHERE id = (
		SELECT id FROM tasks
		WHERE run_at <= $2 AND (locked_until IS NULL OR locked_until <= $2)
		ORDER BY run_at, id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, kind, payload, attempts`,
		now.Add(lease), now)

	var task queue.Task
	err := row.Scan(&task.Id, &task.Kind, &task.Payload, &task.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// CompleteTask removes a finished task. Completing a task someone else
// already removed is a no-op, which is what at-least-once delivery needs.
func (s *Storage) CompleteTask(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

// RescheduleTask releases a claimed task to run again at runAt.
func (s *Storage) RescheduleTask(ctx context.Context, id int64, runAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET run_at = $1, locked_until = NULL WHERE id = $2`,
		runAt.UTC(), id)
	return err
}

// QueueDepth counts pending tasks, for the metrics gauge.
func (s *Storage) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&depth)
	return depth, err
}
