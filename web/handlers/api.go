package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/scrypster/rollcall/internal/config"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	engine ResolutionEngine
	config *config.Config
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(eng ResolutionEngine, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		engine: eng,
		config: cfg,
	}
}

// ResolveMention handles POST /api/mentions - submit an extraction payload
// for resolution. Returns the resolved mention including its workflow state
// and any suggested matches.
func (h *APIHandlers) ResolveMention(w http.ResponseWriter, r *http.Request) {
	var payload types.ExtractionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	mention, err := h.engine.ResolveMention(r.Context(), &payload)
	if err != nil {
		if errors.Is(err, types.ErrExtractionSchema) {
			respondError(w, http.StatusUnprocessableEntity, "extraction payload rejected", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve mention", err)
		return
	}

	respondJSON(w, http.StatusCreated, mention)
}

// ListIdentities handles GET /api/identities - list identities with
// pagination and filtering.
func (h *APIHandlers) ListIdentities(w http.ResponseWriter, r *http.Request) {
	page := parseInt(r.URL.Query().Get("page"), 1)
	limit := parseInt(r.URL.Query().Get("limit"), 20)

	// Enforce maximum pagination limit to prevent resource exhaustion
	if limit > 500 {
		limit = 500
	}

	opts := storage.ListOptions{
		Page:   page,
		Limit:  limit,
		Status: types.IdentityStatus(r.URL.Query().Get("status")),
		Kind:   types.IdentityKind(r.URL.Query().Get("kind")),
	}
	if r.URL.Query().Get("incomplete") == "true" {
		opts.NeedsProfileCompletion = true
	}
	opts.Normalize()

	result, err := h.engine.ListIdentities(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list identities", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetIdentity handles GET /api/identities/{id} - get a single identity.
func (h *APIHandlers) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "identity ID is required", nil)
		return
	}

	identity, err := h.engine.GetIdentity(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "identity not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get identity", err)
		return
	}

	respondJSON(w, http.StatusOK, identity)
}

// PreviewMerge handles POST /api/merge/preview - compute a side-effect-free
// merge preview for a primary/duplicate pair.
func (h *APIHandlers) PreviewMerge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMergeRequest(w, r)
	if !ok {
		return
	}

	preview, err := h.engine.SuggestMerge(r.Context(), req.PrimaryID, req.DuplicateID)
	if err != nil {
		respondMergeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, preview)
}

// Merge handles POST /api/merge - merge the duplicate identity into the
// primary. Returns the consolidated primary.
func (h *APIHandlers) Merge(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMergeRequest(w, r)
	if !ok {
		return
	}

	primary, err := h.engine.Merge(r.Context(), req.PrimaryID, req.DuplicateID)
	if err != nil {
		respondMergeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, primary)
}

func decodeMergeRequest(w http.ResponseWriter, r *http.Request) (*MergeRequest, bool) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return nil, false
	}
	if req.PrimaryID == "" || req.DuplicateID == "" {
		respondError(w, http.StatusBadRequest, "primary_id and duplicate_id are required", nil)
		return nil, false
	}
	return &req, true
}

func respondMergeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, "identity not found", err)
	case errors.Is(err, storage.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "merge rejected", err)
	default:
		respondError(w, http.StatusInternalServerError, "merge failed", err)
	}
}

// ListTasks handles GET /api/tasks - list review tasks ordered by priority
// then age.
func (h *APIHandlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := storage.TaskFilter{
		Status:   types.ReviewTaskStatus(r.URL.Query().Get("status")),
		Priority: types.ReviewPriority(r.URL.Query().Get("priority")),
		Limit:    parseInt(r.URL.Query().Get("limit"), 0),
	}
	filter.Normalize()

	tasks, err := h.engine.ListTasks(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tasks", err)
		return
	}

	respondJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// ResolveTask handles POST /api/tasks/{id}/resolve - close a review task
// with an admin decision and advance the mention's workflow state.
func (h *APIHandlers) ResolveTask(w http.ResponseWriter, r *http.Request) {
	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "task ID is required", nil)
		return
	}

	var req ResolveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	task, err := h.engine.ResolveTask(r.Context(), id, req.Decision, req.ActorID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			respondError(w, http.StatusNotFound, "task not found", err)
		case errors.Is(err, storage.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, "task resolution rejected", err)
		default:
			respondError(w, http.StatusInternalServerError, "failed to resolve task", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// GetStats handles GET /api/stats - active identity and open task counts.
func (h *APIHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Helper functions

// extractID extracts a path parameter from the request.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent, nothing more we can do.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
