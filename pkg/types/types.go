// Package types defines the core data structures for the rollcall entity
// resolution system. These types represent identities, mentions, review tasks,
// and the constants that classify them.
package types

// IdentityStatus represents the lifecycle status of an identity record.
type IdentityStatus string

// Identity status constants
const (
	// IdentityActive indicates the identity is in active use.
	IdentityActive IdentityStatus = "active"

	// IdentityInactive indicates the identity is dormant but not removed.
	IdentityInactive IdentityStatus = "inactive"

	// IdentityTerminated indicates the identity was absorbed by a merge or
	// explicitly deactivated. Terminated identities are never deleted and
	// never returned as match candidates.
	IdentityTerminated IdentityStatus = "terminated"
)

// IdentityKind distinguishes person records from vendor/company records.
type IdentityKind string

// Identity kind constants
const (
	KindPerson IdentityKind = "person"
	KindVendor IdentityKind = "vendor"
)

// ConfidenceTier is the categorical label summarizing match certainty.
type ConfidenceTier string

// Confidence tier constants
const (
	// TierExact indicates the normalized mention equaled a canonical name.
	TierExact ConfidenceTier = "exact"

	// TierHigh indicates an alias hit or a strong fuzzy match.
	TierHigh ConfidenceTier = "high"

	// TierMedium indicates a fuzzy or context-disambiguated match that
	// should be reviewed.
	TierMedium ConfidenceTier = "medium"

	// TierNew indicates no candidate qualified and a new identity was created.
	TierNew ConfidenceTier = "new"
)

// MatchMethod records which resolver layer produced a match decision.
type MatchMethod string

// Match method constants, one per resolver layer.
const (
	MethodExact          MatchMethod = "exact"
	MethodAlias          MatchMethod = "alias"
	MethodFuzzy          MatchMethod = "fuzzy"
	MethodContext        MatchMethod = "context"
	MethodMultipleMatch  MatchMethod = "multiple_matches"
	MethodAutoCreate     MatchMethod = "auto_create"
)

// ReviewPriority represents the urgency of a review task.
type ReviewPriority string

// Review priority constants
const (
	PriorityLow      ReviewPriority = "low"
	PriorityMedium   ReviewPriority = "medium"
	PriorityHigh     ReviewPriority = "high"
	PriorityCritical ReviewPriority = "critical"
)

// ValidReviewPriorities contains all valid review priority values.
var ValidReviewPriorities = []ReviewPriority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityCritical,
}

// IsValidReviewPriority checks if the given priority is valid.
func IsValidReviewPriority(p ReviewPriority) bool {
	for _, valid := range ValidReviewPriorities {
		if p == valid {
			return true
		}
	}
	return false
}

// ReviewTaskStatus represents the open/closed state of a review task.
type ReviewTaskStatus string

// Review task status constants
const (
	TaskOpen     ReviewTaskStatus = "open"
	TaskResolved ReviewTaskStatus = "resolved"
)

// ReviewDecision is the admin decision that closes a review task.
type ReviewDecision string

// Review decision constants
const (
	DecisionApprove ReviewDecision = "approve"
	DecisionCorrect ReviewDecision = "correct"
	DecisionReject  ReviewDecision = "reject"
)

// ValidReviewDecisions contains all valid review decision values.
var ValidReviewDecisions = []ReviewDecision{
	DecisionApprove,
	DecisionCorrect,
	DecisionReject,
}

// IsValidReviewDecision checks if the given decision is valid.
func IsValidReviewDecision(d ReviewDecision) bool {
	for _, valid := range ValidReviewDecisions {
		if d == valid {
			return true
		}
	}
	return false
}

// FieldCategory classifies the content of an extracted field for review
// priority escalation. Safety-category content always escalates to critical
// regardless of confidence score.
type FieldCategory string

// Field category constants
const (
	CategoryGeneral  FieldCategory = "general"
	CategoryFinance  FieldCategory = "finance"
	CategorySafety   FieldCategory = "safety"
	CategoryCritical FieldCategory = "critical_severity"
)

// IsEscalating reports whether a field category forces critical review
// priority regardless of the computed confidence score.
func (c FieldCategory) IsEscalating() bool {
	return c == CategorySafety || c == CategoryCritical
}
