// Package notify delivers fire-and-forget events to an external
// notification collaborator when critical-priority review tasks are
// created. Delivery failures are logged, never fatal: the review task is
// already persisted and the queue is the source of truth.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scrypster/rollcall/pkg/types"
)

// Event is the payload posted to the notification sink.
type Event struct {
	Type      string               `json:"type"`
	TaskID    string               `json:"task_id"`
	MentionID string               `json:"mention_id"`
	Priority  types.ReviewPriority `json:"priority"`
	Reason    string               `json:"reason"`
	Time      int64                `json:"time"`
}

// Notifier emits review-queue events. Implementations must be safe for
// concurrent use and must never block resolution on delivery.
type Notifier interface {
	// CriticalTask emits an event for a newly created critical-priority
	// review task.
	CriticalTask(ctx context.Context, task *types.ReviewTask)
}

// NopNotifier discards all events. Used when notification is disabled.
type NopNotifier struct{}

// CriticalTask implements Notifier.
func (NopNotifier) CriticalTask(context.Context, *types.ReviewTask) {}

// Sink posts events to an HTTP collaborator, protected by a circuit
// breaker so a dead sink cannot slow resolution down with timeouts.
type Sink struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewSink creates a sink for the given endpoint URL. The circuit opens
// after 3 consecutive failures and probes again after 30 seconds.
func NewSink(url string) *Sink {
	settings := gobreaker.Settings{
		Name:    "notify-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("notify: circuit %s transitioned %s -> %s", name, from, to)
		},
	}

	return &Sink{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// CriticalTask implements Notifier. The post runs through the circuit
// breaker; failures are logged and dropped.
func (s *Sink) CriticalTask(ctx context.Context, task *types.ReviewTask) {
	evt := Event{
		Type:      "critical_review_task",
		TaskID:    task.ID,
		MentionID: task.MentionID,
		Priority:  task.Priority,
		Reason:    task.Reason,
		Time:      time.Now().UnixNano(),
	}

	if _, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, evt)
	}); err != nil {
		log.Printf("notify: dropping event for task %s: %v", task.ID, err)
	}
}

// post delivers one event to the sink endpoint.
func (s *Sink) post(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: sink returned status %d", resp.StatusCode)
	}
	return nil
}
