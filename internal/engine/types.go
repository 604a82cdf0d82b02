// Package engine implements the entity resolution core: the six-layer
// resolver, the calibrated confidence scorer, the review workflow state
// machine, and the merge engine. The engine is stateless per call; all state
// lives in the injected stores, so resolution of independent mentions is
// safe to parallelize.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/rollcall/pkg/types"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// systemClock is the production clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// mergeRetryLimit bounds optimistic-concurrency retries for merge writes.
const mergeRetryLimit = 3

// GenerateIdentityID generates a unique identity ID in the format
// idn:kind:slug.
func GenerateIdentityID(kind types.IdentityKind) string {
	return fmt.Sprintf("idn:%s:%s", kind, shortUUID())
}

// GenerateMentionID generates a unique mention ID in the format mnt:slug.
func GenerateMentionID() string {
	return "mnt:" + shortUUID()
}

// GenerateTaskID generates a unique review task ID in the format rvw:slug.
func GenerateTaskID() string {
	return "rvw:" + shortUUID()
}

// shortUUID returns the first segment-free 12 hex chars of a UUID, enough
// uniqueness for human-facing IDs while keeping them short.
func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
