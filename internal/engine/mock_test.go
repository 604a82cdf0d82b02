package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scrypster/rollcall/internal/match"
	"github.com/scrypster/rollcall/internal/storage"
	"github.com/scrypster/rollcall/pkg/types"
)

// fakeClock is a fixed clock for deterministic tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

// memStore is an in-memory storage.Store for engine tests. It mimics the
// real backends: Get returns copies, ConditionalUpdate enforces versions.
type memStore struct {
	mu         sync.Mutex
	identities map[string]*types.Identity
	mentions   map[string]*types.Mention
	tasks      map[string]*types.ReviewTask
}

func newMemStore() *memStore {
	return &memStore{
		identities: make(map[string]*types.Identity),
		mentions:   make(map[string]*types.Mention),
		tasks:      make(map[string]*types.ReviewTask),
	}
}

func (s *memStore) Identities() storage.IdentityStore   { return (*memIdentityStore)(s) }
func (s *memStore) Mentions() storage.MentionStore      { return (*memMentionStore)(s) }
func (s *memStore) ReviewTasks() storage.ReviewTaskStore { return (*memTaskStore)(s) }
func (s *memStore) Close() error                        { return nil }

type memIdentityStore memStore

func cloneIdentity(i *types.Identity) *types.Identity {
	c := *i
	c.Aliases = append([]string(nil), i.Aliases...)
	c.MergedFrom = append([]string(nil), i.MergedFrom...)
	return &c
}

func (s *memIdentityStore) Put(_ context.Context, identity *types.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneIdentity(identity)
	c.Version++
	s.identities[c.ID] = c
	return nil
}

func (s *memIdentityStore) Get(_ context.Context, id string) (*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneIdentity(ident), nil
}

func (s *memIdentityStore) FindByCanonicalName(_ context.Context, name string) (*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Status == types.IdentityActive && match.ComparisonForm(ident.CanonicalName) == name {
			return cloneIdentity(ident), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memIdentityStore) FindByAlias(_ context.Context, alias string) (*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ident := range s.identities {
		if ident.Status != types.IdentityActive {
			continue
		}
		for _, a := range ident.Aliases {
			if match.ComparisonForm(a) == alias {
				return cloneIdentity(ident), nil
			}
		}
	}
	return nil, storage.ErrNotFound
}

func (s *memIdentityStore) FindActiveCandidates(_ context.Context) ([]*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Identity
	for _, ident := range s.identities {
		if ident.Status == types.IdentityActive {
			out = append(out, cloneIdentity(ident))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memIdentityStore) List(_ context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Identity], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts.Normalize()
	var items []types.Identity
	for _, ident := range s.identities {
		if opts.Status != "" && ident.Status != opts.Status {
			continue
		}
		if opts.Kind != "" && ident.Kind != opts.Kind {
			continue
		}
		items = append(items, *cloneIdentity(ident))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &storage.PaginatedResult[types.Identity]{
		Items: items, Total: len(items), Page: opts.Page, PageSize: opts.Limit,
	}, nil
}

func (s *memIdentityStore) ConditionalUpdate(_ context.Context, id string, expectedVersion int, mutate func(*types.Identity) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return storage.ErrNotFound
	}
	if ident.Version != expectedVersion {
		return storage.ErrConcurrentModification
	}
	c := cloneIdentity(ident)
	if err := mutate(c); err != nil {
		return err
	}
	c.Version++
	s.identities[id] = c
	return nil
}

func (s *memIdentityStore) RecordMention(_ context.Context, id string, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return storage.ErrNotFound
	}
	ident.MentionCount++
	ident.LastSeen = time.Now()
	if scope != "" {
		ident.LastScope = scope
	}
	return nil
}

func (s *memIdentityStore) Close() error { return nil }

type memMentionStore memStore

func (s *memMentionStore) Put(_ context.Context, mention *types.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *mention
	s.mentions[c.ID] = &c
	return nil
}

func (s *memMentionStore) Get(_ context.Context, id string) (*types.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *m
	return &c, nil
}

func (s *memMentionStore) UpdateWorkflowState(_ context.Context, id string, state string, needsReview bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mentions[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.WorkflowState = state
	m.NeedsReview = needsReview
	return nil
}

type memTaskStore memStore

func (s *memTaskStore) Create(_ context.Context, task *types.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *task
	s.tasks[c.ID] = &c
	return nil
}

func (s *memTaskStore) Get(_ context.Context, id string) (*types.ReviewTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (s *memTaskStore) List(_ context.Context, filter storage.TaskFilter) ([]*types.ReviewTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter.Normalize()
	var out []*types.ReviewTask
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memTaskStore) Resolve(_ context.Context, id string, decision types.ReviewDecision, actorID string) (*types.ReviewTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if t.Status == types.TaskResolved {
		return nil, fmt.Errorf("%w: task already resolved", storage.ErrInvalidInput)
	}
	now := time.Now()
	t.Status = types.TaskResolved
	t.Resolution = decision
	t.ResolvedBy = actorID
	t.ResolvedAt = &now
	c := *t
	return &c, nil
}

func (s *memTaskStore) CountByPriority(_ context.Context) (map[types.ReviewPriority]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[types.ReviewPriority]int)
	for _, t := range s.tasks {
		if t.Status == types.TaskOpen {
			counts[t.Priority]++
		}
	}
	return counts, nil
}

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	tasks []*types.ReviewTask
}

func (n *recordingNotifier) CriticalTask(_ context.Context, task *types.ReviewTask) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tasks)
}
