package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// TaskStore implements storage.ReviewTaskStore using SQLite.
type TaskStore struct {
	db *sql.DB
}

// Ensure *TaskStore implements storage.ReviewTaskStore at compile time.
var _ storage.ReviewTaskStore = (*TaskStore)(nil)

const taskColumns = `
	id, mention_id, identity_id, reason, priority, status,
	resolution, resolved_by, resolved_at, created_at, updated_at`

// Create stores a new review task.
func (s *TaskStore) Create(ctx context.Context, task *types.ReviewTask) error {
	if task == nil {
		return storage.ErrInvalidInput
	}
	if task.ID == "" {
		return fmt.Errorf("%w: task ID is required", storage.ErrInvalidInput)
	}
	if task.MentionID == "" {
		return fmt.Errorf("%w: task mention ID is required", storage.ErrInvalidInput)
	}
	if !types.IsValidReviewPriority(task.Priority) {
		return fmt.Errorf("%w: invalid priority %q", storage.ErrInvalidInput, task.Priority)
	}

	if task.Status == "" {
		task.Status = types.TaskOpen
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_tasks (
			id, mention_id, identity_id, reason, priority, status,
			resolution, resolved_by, resolved_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.MentionID, task.IdentityID, task.Reason, task.Priority, task.Status,
		task.Resolution, task.ResolvedBy, nullTimePtr(task.ResolvedAt), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: Create task %s: %w", task.ID, err)
	}
	return nil
}

// Get retrieves a task by ID.
func (s *TaskStore) Get(ctx context.Context, id string) (*types.ReviewTask, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM review_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// List retrieves tasks matching the filter, ordered by priority (critical
// first) then by creation time ascending, so the oldest urgent work
// surfaces at the top of the queue.
func (s *TaskStore) List(ctx context.Context, filter storage.TaskFilter) ([]*types.ReviewTask, error) {
	filter.Normalize()

	where := "1=1"
	args := []any{}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		where += " AND priority = ?"
		args = append(args, filter.Priority)
	}

	query := `SELECT ` + taskColumns + ` FROM review_tasks WHERE ` + where + `
		ORDER BY CASE priority
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		END, created_at ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: List tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.ReviewTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate tasks: %w", err)
	}
	return out, nil
}

// Resolve closes an open task with the given decision and actor. Resolving
// an already-resolved task is an input error.
func (s *TaskStore) Resolve(ctx context.Context, id string, decision types.ReviewDecision, actorID string) (*types.ReviewTask, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_tasks SET
			status = ?, resolution = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		types.TaskResolved, decision, actorID, now, now, id, types.TaskOpen)
	if err != nil {
		return nil, fmt.Errorf("sqlite: Resolve task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: Resolve task %s: %w", id, err)
	}
	if affected == 0 {
		// Distinguish a missing task from one already closed.
		task, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: task %s already resolved as %s",
			storage.ErrInvalidInput, id, task.Resolution)
	}

	return s.Get(ctx, id)
}

// CountByPriority returns the number of open tasks per priority.
func (s *TaskStore) CountByPriority(ctx context.Context) (map[types.ReviewPriority]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT priority, COUNT(*) FROM review_tasks
		WHERE status = ? GROUP BY priority`,
		types.TaskOpen)
	if err != nil {
		return nil, fmt.Errorf("sqlite: CountByPriority: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[types.ReviewPriority]int)
	for rows.Next() {
		var (
			priority types.ReviewPriority
			n        int
		)
		if err := rows.Scan(&priority, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scan priority count: %w", err)
		}
		counts[priority] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate priority counts: %w", err)
	}
	return counts, nil
}

// scanTask scans a single review task row, mapping sql.ErrNoRows to
// storage.ErrNotFound.
func scanTask(row rowScanner) (*types.ReviewTask, error) {
	var (
		task       types.ReviewTask
		resolvedAt sql.NullTime
	)

	err := row.Scan(
		&task.ID, &task.MentionID, &task.IdentityID, &task.Reason, &task.Priority, &task.Status,
		&task.Resolution, &task.ResolvedBy, &resolvedAt, &task.CreatedAt, &task.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan task: %w", err)
	}

	if resolvedAt.Valid {
		task.ResolvedAt = &resolvedAt.Time
	}

	return &task, nil
}

// nullTimePtr converts an optional time pointer to its nullable SQL form.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
