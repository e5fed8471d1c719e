package dispatch

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"casemail-go/internal/model"
)

// ContentDuplicateGuard catches content-identical sends to the same recipient
// under different idempotency keys, within a trailing time window. This is a
// best-effort check: two sends racing inside the window before either commits
// sent can both pass it. The key-level guard is the correctness guarantee;
// this one closes the hour-bucket rollover gap.
type ContentDuplicateGuard struct {
	store  Store
	window time.Duration
}

// NewContentDuplicateGuard creates a guard with the given trailing window.
func NewContentDuplicateGuard(store Store, window time.Duration) *ContentDuplicateGuard {
	return &ContentDuplicateGuard{store: store, window: window}
}

// FindRecentDuplicate looks for a sent record with identical recipient, email
// type and content hash inside the window. On a hit it writes a deduplication
// audit entry naming the winning and the suppressed key, and returns the
// winning record. Returns nil when no duplicate exists.
func (g *ContentDuplicateGuard) FindRecentDuplicate(recipient string, emailType model.EmailType, contentHash, duplicateKey string, metadata model.Metadata) (*model.IdempotencyRecord, error) {
	since := time.Now().Add(-g.window)

	original, err := g.store.FindRecentSent(recipient, emailType, contentHash, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sends: %w", err)
	}
	if original == nil {
		return nil, nil
	}

	entry := &model.DeduplicationLog{
		Recipient:    recipient,
		EmailType:    emailType,
		ContentHash:  contentHash,
		OriginalKey:  original.IdempotencyKey,
		DuplicateKey: duplicateKey,
		PreventedAt:  time.Now(),
		Metadata:     metadata,
	}
	if err := g.store.CreateDedupLog(entry); err != nil {
		// The duplicate is still suppressed when the audit row fails.
		logrus.Errorf("Failed to write deduplication log for %s: %v", recipient, err)
	}

	return original, nil
}
