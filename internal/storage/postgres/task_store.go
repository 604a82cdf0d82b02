package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// TaskStore implements storage.ReviewTaskStore using PostgreSQL.
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.MentionID, task.IdentityID, task.Reason, task.Priority, task.Status,
		task.Resolution, task.ResolvedBy, nullTimePtr(task.ResolvedAt), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: Create task %s: %w", task.ID, err)
	}
	return nil
}

// Get retrieves a task by ID.
func (s *TaskStore) Get(ctx context.Context, id string) (*types.ReviewTask, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: task ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM review_tasks WHERE id = $1`, id)
	return scanTask(row)
}

// List retrieves tasks matching the filter, ordered by priority (critical
// first) then by creation time ascending.
func (s *TaskStore) List(ctx context.Context, filter storage.TaskFilter) ([]*types.ReviewTask, error) {
	filter.Normalize()

	where := "1=1"
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		where += fmt.Sprintf(" AND priority = $%d", len(args))
	}

	query := fmt.Sprintf(`SELECT %s FROM review_tasks WHERE %s
		ORDER BY CASE priority
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			ELSE 3
		END, created_at ASC
		LIMIT $%d`, taskColumns, where, len(args)+1)

	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("postgres: List tasks: %w", err)
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
		return nil, fmt.Errorf("postgres: iterate tasks: %w", err)
	}
	return out, nil
}

// Resolve closes an open task with the given decision and actor.
func (s *TaskStore) Resolve(ctx context.Context, id string, decision types.ReviewDecision, actorID string) (*types.ReviewTask, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_tasks SET
			status = $1, resolution = $2, resolved_by = $3, resolved_at = $4, updated_at = $5
		WHERE id = $6 AND status = $7`,
		types.TaskResolved, decision, actorID, now, now, id, types.TaskOpen)
	if err != nil {
		return nil, fmt.Errorf("postgres: Resolve task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: Resolve task %s: %w", id, err)
	}
	if affected == 0 {
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
		WHERE status = $1 GROUP BY priority`,
		types.TaskOpen)
	if err != nil {
		return nil, fmt.Errorf("postgres: CountByPriority: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[types.ReviewPriority]int)
	for rows.Next() {
		var (
			priority types.ReviewPriority
			n        int
		)
		if err := rows.Scan(&priority, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan priority count: %w", err)
		}
		counts[priority] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate priority counts: %w", err)
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
		return nil, fmt.Errorf("postgres: scan task: %w", err)
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
