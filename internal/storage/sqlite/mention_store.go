package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// MentionStore implements storage.MentionStore using SQLite.
type MentionStore struct {
	db *sql.DB
}

// Ensure *MentionStore implements storage.MentionStore at compile time.
var _ storage.MentionStore = (*MentionStore)(nil)

const mentionColumns = `
	id, raw_text, project_id, report_id, timestamp,
	identity_id, tier, match_method, match_score, confidence,
	needs_review, suggested_matches, workflow_state, field_category,
	created_at, updated_at`

// Put creates or updates a mention record.
func (s *MentionStore) Put(ctx context.Context, mention *types.Mention) error {
	if mention == nil {
		return storage.ErrInvalidInput
	}
	if mention.ID == "" {
		return fmt.Errorf("%w: mention ID is required", storage.ErrInvalidInput)
	}
	if mention.RawText == "" {
		return fmt.Errorf("%w: mention raw text is required", storage.ErrInvalidInput)
	}

	if mention.CreatedAt.IsZero() {
		mention.CreatedAt = time.Now()
	}
	mention.UpdatedAt = time.Now()

	var suggestedJSON []byte
	if len(mention.SuggestedMatches) > 0 {
		var err error
		suggestedJSON, err = json.Marshal(mention.SuggestedMatches)
		if err != nil {
			return fmt.Errorf("failed to marshal suggested matches: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mentions (
			id, raw_text, project_id, report_id, timestamp,
			identity_id, tier, match_method, match_score, confidence,
			needs_review, suggested_matches, workflow_state, field_category,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity_id = excluded.identity_id,
			tier = excluded.tier,
			match_method = excluded.match_method,
			match_score = excluded.match_score,
			confidence = excluded.confidence,
			needs_review = excluded.needs_review,
			suggested_matches = excluded.suggested_matches,
			workflow_state = excluded.workflow_state,
			field_category = excluded.field_category,
			updated_at = excluded.updated_at`,
		mention.ID, mention.RawText, mention.ProjectID, mention.ReportID, nullTime(mention.Timestamp),
		mention.IdentityID, mention.Tier, mention.MatchMethod, mention.MatchScore, mention.Confidence,
		mention.NeedsReview, nullString(suggestedJSON), mention.WorkflowState, mention.FieldCategory,
		mention.CreatedAt, mention.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: Put mention %s: %w", mention.ID, err)
	}
	return nil
}

// Get retrieves a mention by ID.
func (s *MentionStore) Get(ctx context.Context, id string) (*types.Mention, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: mention ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+mentionColumns+` FROM mentions WHERE id = ?`, id)
	return scanMention(row)
}

// UpdateWorkflowState updates the workflow state and review flag of a mention.
func (s *MentionStore) UpdateWorkflowState(ctx context.Context, id string, state string, needsReview bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE mentions SET workflow_state = ?, needs_review = ?, updated_at = ?
		WHERE id = ?`,
		state, needsReview, time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: UpdateWorkflowState %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: UpdateWorkflowState %s: %w", id, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanMention scans a single mention row, mapping sql.ErrNoRows to
// storage.ErrNotFound.
func scanMention(row rowScanner) (*types.Mention, error) {
	var (
		mention   types.Mention
		timestamp sql.NullTime
		suggested sql.NullString
	)

	err := row.Scan(
		&mention.ID, &mention.RawText, &mention.ProjectID, &mention.ReportID, &timestamp,
		&mention.IdentityID, &mention.Tier, &mention.MatchMethod, &mention.MatchScore, &mention.Confidence,
		&mention.NeedsReview, &suggested, &mention.WorkflowState, &mention.FieldCategory,
		&mention.CreatedAt, &mention.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan mention: %w", err)
	}

	if timestamp.Valid {
		mention.Timestamp = timestamp.Time
	}
	if suggested.Valid && suggested.String != "" {
		if err := json.Unmarshal([]byte(suggested.String), &mention.SuggestedMatches); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal suggested matches for %s: %w", mention.ID, err)
		}
	}

	return &mention, nil
}

// nullString converts possibly-empty JSON bytes to a nullable SQL string.
func nullString(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}
