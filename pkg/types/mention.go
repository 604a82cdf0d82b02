package types

import "time"

// Mention represents a single free-text reference to a person or vendor,
// produced by the upstream extraction pipeline. A mention is immutable once
// resolved except for its review fields.
type Mention struct {
	ID      string `json:"id"`       // Unique identifier (format: mnt:slug)
	RawText string `json:"raw_text"` // Raw input string as extracted

	// Optional context supplied by the caller
	ProjectID string    `json:"project_id,omitempty"` // Scope hint for disambiguation
	ReportID  string    `json:"report_id,omitempty"`  // Source report reference
	Timestamp time.Time `json:"timestamp,omitempty"`  // When the mention occurred

	// Resolution outcome
	IdentityID  string         `json:"identity_id,omitempty"` // Resolved identity; empty only transiently
	Tier        ConfidenceTier `json:"tier,omitempty"`
	MatchMethod MatchMethod    `json:"match_method,omitempty"`
	MatchScore  float64        `json:"match_score,omitempty"` // Combined similarity score (0-100)
	Confidence  float64        `json:"confidence,omitempty"`  // Overall calibrated confidence (0-100)

	// Review routing
	NeedsReview      bool             `json:"needs_review"`
	SuggestedMatches []SuggestedMatch `json:"suggested_matches,omitempty"`
	WorkflowState    string           `json:"workflow_state,omitempty"`

	// Classification of the mention's content, used for priority escalation.
	FieldCategory FieldCategory `json:"field_category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SuggestedMatch is an alternate candidate identity recorded when resolution
// was ambiguous, so a reviewer can reassign the mention.
type SuggestedMatch struct {
	IdentityID    string  `json:"identity_id"`
	CanonicalName string  `json:"canonical_name"`
	Score         float64 `json:"score"`         // Combined similarity score (0-100)
	EditDistance  int     `json:"edit_distance"` // Raw Levenshtein distance
}

// MatchResult is the outcome of resolving one mention against the identity
// store. It is returned by the public resolution API.
type MatchResult struct {
	IdentityID       string           `json:"identity_id"`
	CanonicalName    string           `json:"canonical_name"`
	Tier             ConfidenceTier   `json:"tier"`
	MatchMethod      MatchMethod      `json:"match_method"`
	Score            float64          `json:"score"`   // Combined similarity score (0-100)
	Created          bool             `json:"created"` // True when a new identity was auto-created
	NeedsReview      bool             `json:"needs_review"`
	SuggestedMatches []SuggestedMatch `json:"suggested_matches,omitempty"`
}

// MatchContext carries optional disambiguation hints for resolution.
type MatchContext struct {
	// EntityScope restricts context disambiguation to identities whose most
	// recent activity was in this scope (typically a project id).
	EntityScope string `json:"entity_scope,omitempty"`

	// TimeHint is the time the mention refers to, if known.
	TimeHint time.Time `json:"time_hint,omitempty"`
}

// HasScope reports whether the context carries a usable scope hint.
func (c *MatchContext) HasScope() bool {
	return c != nil && c.EntityScope != ""
}
