package types

import "time"

// ReviewTask represents one pending human decision about an ambiguous or
// low-confidence resolution. Tasks are created by the confidence scorer and
// closed only by an explicit admin decision.
type ReviewTask struct {
	ID         string           `json:"id"`                    // Unique identifier (format: rvw:slug)
	MentionID  string           `json:"mention_id"`            // Mention this task concerns
	IdentityID string           `json:"identity_id,omitempty"` // Identity the mention resolved to
	Reason     string           `json:"reason"`                // Human-readable explanation
	Priority   ReviewPriority   `json:"priority"`
	Status     ReviewTaskStatus `json:"status"`

	// Resolution fields, populated when the task is closed.
	Resolution ReviewDecision `json:"resolution,omitempty"`
	ResolvedBy string         `json:"resolved_by,omitempty"` // Actor ID of the admin
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the task still awaits an admin decision.
func (t *ReviewTask) IsOpen() bool {
	return t.Status == TaskOpen
}

// MergePreview is the pure, side-effect-free result of suggestMerge. It
// reports what a merge of duplicate into primary would change.
type MergePreview struct {
	PrimaryID   string `json:"primary_id"`
	DuplicateID string `json:"duplicate_id"`

	// Conflicts lists fields present and differing on both records. They
	// are advisory: merge never auto-resolves them.
	Conflicts []FieldConflict `json:"conflicts,omitempty"`

	// NewAliases are the duplicate's aliases not already on the primary.
	NewAliases []string `json:"new_aliases,omitempty"`

	// FilledFields are fields blank on primary that merge would copy from
	// the duplicate.
	FilledFields []string `json:"filled_fields,omitempty"`

	// AliasCollisions lists aliases that already belong to a third active
	// identity. Advisory only; the merge still proceeds.
	AliasCollisions []AliasCollision `json:"alias_collisions,omitempty"`
}

// FieldConflict describes one field that differs between merge candidates.
type FieldConflict struct {
	Field          string `json:"field"`
	PrimaryValue   string `json:"primary_value"`
	DuplicateValue string `json:"duplicate_value"`
}

// AliasCollision describes an alias that would be unioned onto the primary
// but already belongs to another active identity.
type AliasCollision struct {
	Alias      string `json:"alias"`
	IdentityID string `json:"identity_id"` // The third identity holding the alias
}
