package dispatch

import (
	"fmt"
	"time"

	"casemail-go/internal/model"
)

// CheckResult is the outcome of IdempotencyGuard.CheckOrCreate.
type CheckResult struct {
	// Record is the row now governing the key: the freshly created pending
	// record, or the pre-existing one.
	Record *model.IdempotencyRecord
	// Created is true when this caller won the insert and owns the send.
	Created bool
}

// IdempotencyGuard owns the per-key state machine
// absent -> pending -> {sent, failed}.
type IdempotencyGuard struct {
	store Store
	ttl   time.Duration
}

// NewIdempotencyGuard creates a guard whose records live for ttl.
func NewIdempotencyGuard(store Store, ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, ttl: ttl}
}

// CheckOrCreate inserts a pending record for key via a single atomic store
// operation. Concurrent callers with the same key race on the unique key
// constraint: exactly one wins and proceeds to send, the others observe the
// existing row and fall into the duplicate or retry path.
func (g *IdempotencyGuard) CheckOrCreate(key string, emailType model.EmailType, recipient, contentHash string, metadata model.Metadata) (*CheckResult, error) {
	now := time.Now()
	rec := &model.IdempotencyRecord{
		IdempotencyKey: key,
		EmailType:      emailType,
		Recipient:      recipient,
		ContentHash:    contentHash,
		Status:         model.StatusPending,
		Metadata:       metadata,
		ExpiresAt:      now.Add(g.ttl),
		CreatedAt:      now,
	}

	existing, created, err := g.store.InsertRecordIfAbsent(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to check or create idempotency record: %w", err)
	}
	if created {
		return &CheckResult{Record: rec, Created: true}, nil
	}
	return &CheckResult{Record: existing, Created: false}, nil
}

// MarkSent transitions the record to sent. Safe to call twice: a record that
// is already sent stays sent with its original timestamp.
func (g *IdempotencyGuard) MarkSent(key string) error {
	if err := g.store.MarkRecordSent(key, time.Now()); err != nil {
		return fmt.Errorf("failed to mark record sent: %w", err)
	}
	return nil
}

// MarkFailed transitions the record to failed. It never demotes a sent
// record; re-marking a failed record is a no-op.
func (g *IdempotencyGuard) MarkFailed(key string) error {
	if err := g.store.MarkRecordFailed(key); err != nil {
		return fmt.Errorf("failed to mark record failed: %w", err)
	}
	return nil
}
