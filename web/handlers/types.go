package handlers

import (
	"context"

	"github.com/scrypster/rollcall/internal/engine"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// ResolutionEngine is the surface of the resolution engine the HTTP layer
// depends on. *engine.Engine satisfies it.
type ResolutionEngine interface {
	ResolveMention(ctx context.Context, payload *types.ExtractionPayload) (*types.Mention, error)
	ResolveTask(ctx context.Context, taskID string, decision types.ReviewDecision, actorID string) (*types.ReviewTask, error)
	SuggestMerge(ctx context.Context, primaryID, duplicateID string) (*types.MergePreview, error)
	Merge(ctx context.Context, primaryID, duplicateID string) (*types.Identity, error)
	GetIdentity(ctx context.Context, id string) (*types.Identity, error)
	ListIdentities(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Identity], error)
	ListTasks(ctx context.Context, filter storage.TaskFilter) ([]*types.ReviewTask, error)
	GetStats(ctx context.Context) (*engine.Stats, error)
}

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ResolveTaskRequest is the request body for POST /api/tasks/{id}/resolve.
type ResolveTaskRequest struct {
	Decision types.ReviewDecision `json:"decision"`
	ActorID  string               `json:"actor_id"`
}

// MergeRequest is the request body for the merge and merge-preview endpoints.
type MergeRequest struct {
	PrimaryID   string `json:"primary_id"`
	DuplicateID string `json:"duplicate_id"`
}

// TaskListResponse is the response format for GET /api/tasks.
type TaskListResponse struct {
	Tasks []*types.ReviewTask `json:"tasks"`
	Total int                 `json:"total"`
}

// TaskEvent is broadcast over the websocket feed when a review task is
// created, so open review dashboards refresh without polling.
type TaskEvent struct {
	Type string            `json:"type"`
	Task *types.ReviewTask `json:"task"`
}
