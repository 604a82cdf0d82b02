package storage

import (
	"errors"

	"github.com/scrypster/rollcall/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentModification indicates a conditional update lost a race:
	// the record's version no longer matched the expected version. Callers
	// retry with a fresh read; alias union and terminate are idempotent, so
	// retries are safe.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// PaginatedResult represents a paginated result set with type safety using generics.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// ListOptions provides pagination and filtering options for identity listing.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 20, max: 200).
	Limit int

	// Status filters by identity status. Empty string means no filter.
	Status types.IdentityStatus

	// Kind filters by identity kind (person/vendor). Empty means no filter.
	Kind types.IdentityKind

	// NeedsProfileCompletion, when true, restricts to identities flagged
	// for profile completion.
	NeedsProfileCompletion bool
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}

	if o.Limit < 1 {
		o.Limit = 20
	}

	if o.Limit > 200 {
		o.Limit = 200
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// TaskFilter provides filtering options for review task listing.
type TaskFilter struct {
	// Status filters by task status (open/resolved). Empty means no filter.
	Status types.ReviewTaskStatus

	// Priority filters by task priority. Empty means no filter.
	Priority types.ReviewPriority

	// Limit caps the number of returned tasks (default: 50, max: 500).
	Limit int
}

// Normalize applies defaults and validates the TaskFilter.
func (f *TaskFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 50
	}

	if f.Limit > 500 {
		f.Limit = 500
	}
}
