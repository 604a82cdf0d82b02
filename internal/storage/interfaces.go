// Package storage provides composable storage interfaces for the rollcall
// system.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. The engine holds no
// internal locks: writes that must appear atomic (merge) use the versioned
// ConditionalUpdate operation and retry on conflict.
package storage

import (
	"context"

	"github.com/scrypster/rollcall/pkg/types"
)

// IdentityStore provides persistence for canonical identity records.
type IdentityStore interface {
	// Put creates or updates an identity (upsert semantics). The stored
	// version is incremented on every write.
	Put(ctx context.Context, identity *types.Identity) error

	// Get retrieves an identity by ID.
	// Returns ErrNotFound if the identity doesn't exist.
	Get(ctx context.Context, id string) (*types.Identity, error)

	// FindByCanonicalName retrieves the active identity whose normalized
	// canonical name equals the given comparison string.
	// Returns ErrNotFound when no such identity exists.
	FindByCanonicalName(ctx context.Context, name string) (*types.Identity, error)

	// FindByAlias retrieves the active identity carrying the given alias.
	// Returns ErrNotFound when no such identity exists.
	FindByAlias(ctx context.Context, alias string) (*types.Identity, error)

	// FindActiveCandidates returns all identities with status active.
	// Terminated and inactive identities are excluded and therefore never
	// participate in fuzzy matching.
	FindActiveCandidates(ctx context.Context) ([]*types.Identity, error)

	// List retrieves identities with pagination and filtering.
	List(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Identity], error)

	// ConditionalUpdate applies mutate to the identity only if its stored
	// version equals expectedVersion, then persists it with an incremented
	// version. Returns ErrConcurrentModification when the version check
	// fails and ErrNotFound when the identity doesn't exist.
	ConditionalUpdate(ctx context.Context, id string, expectedVersion int, mutate func(*types.Identity) error) error

	// RecordMention atomically increments the mention count and advances
	// last_seen/last_scope for the given identity.
	RecordMention(ctx context.Context, id string, scope string) error

	// Close releases any resources held by the store.
	Close() error
}

// MentionStore provides persistence for resolved mentions.
type MentionStore interface {
	// Put creates or updates a mention record.
	Put(ctx context.Context, mention *types.Mention) error

	// Get retrieves a mention by ID.
	// Returns ErrNotFound if the mention doesn't exist.
	Get(ctx context.Context, id string) (*types.Mention, error)

	// UpdateWorkflowState updates the workflow state and review flag of a
	// mention. Returns ErrNotFound if the mention doesn't exist.
	UpdateWorkflowState(ctx context.Context, id string, state string, needsReview bool) error
}

// ReviewTaskStore provides persistence for the human-review queue.
type ReviewTaskStore interface {
	// Create stores a new review task.
	Create(ctx context.Context, task *types.ReviewTask) error

	// Get retrieves a task by ID.
	// Returns ErrNotFound if the task doesn't exist.
	Get(ctx context.Context, id string) (*types.ReviewTask, error)

	// List retrieves tasks matching the filter, ordered by priority
	// (critical first) then by creation time ascending.
	List(ctx context.Context, filter TaskFilter) ([]*types.ReviewTask, error)

	// Resolve closes an open task with the given decision and actor.
	// Returns ErrNotFound if the task doesn't exist and ErrInvalidInput if
	// it is already resolved.
	Resolve(ctx context.Context, id string, decision types.ReviewDecision, actorID string) (*types.ReviewTask, error)

	// CountByPriority returns the number of open tasks per priority.
	CountByPriority(ctx context.Context) (map[types.ReviewPriority]int, error)
}

// Store bundles the three persistence interfaces implemented by each backend.
type Store interface {
	Identities() IdentityStore
	Mentions() MentionStore
	ReviewTasks() ReviewTaskStore
	Close() error
}
