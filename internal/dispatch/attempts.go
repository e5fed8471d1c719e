package dispatch

import (
	"fmt"
	"time"

	"casemail-go/internal/model"
)

// AttemptTracker records every physical transport call and enforces the
// per-key retry bound.
type AttemptTracker struct {
	store       Store
	maxAttempts int
}

// NewAttemptTracker creates a tracker allowing at most maxAttempts transport
// calls per idempotency key.
func NewAttemptTracker(store Store, maxAttempts int) *AttemptTracker {
	return &AttemptTracker{store: store, maxAttempts: maxAttempts}
}

// NextAttemptNumber returns the number the next attempt for key would carry.
func (t *AttemptTracker) NextAttemptNumber(key string) (int, error) {
	count, err := t.store.CountAttempts(key)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count + 1, nil
}

// Exhausted reports whether attemptNumber exceeds the retry bound.
func (t *AttemptTracker) Exhausted(attemptNumber int) bool {
	return attemptNumber > t.maxAttempts
}

// RecordAttempt inserts a pending attempt row before the transport is
// contacted, so the attempt is visible even if the process crashes mid-send.
func (t *AttemptTracker) RecordAttempt(key string, attemptNumber int) (*model.SendAttempt, error) {
	att := &model.SendAttempt{
		IdempotencyKey: key,
		AttemptNumber:  attemptNumber,
		Status:         model.StatusPending,
		AttemptedAt:    time.Now(),
	}
	if err := t.store.CreateAttempt(att); err != nil {
		return nil, fmt.Errorf("failed to record attempt: %w", err)
	}
	return att, nil
}

// CompleteAttempt sets the terminal outcome of an attempt. Completed attempts
// are never mutated again.
func (t *AttemptTracker) CompleteAttempt(att *model.SendAttempt, status model.SendStatus, errorMessage string) error {
	if err := t.store.CompleteAttempt(att.ID, status, errorMessage, time.Now()); err != nil {
		return fmt.Errorf("failed to complete attempt: %w", err)
	}
	return nil
}
