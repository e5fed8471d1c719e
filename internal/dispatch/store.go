package dispatch

import (
	"time"

	"casemail-go/internal/model"
)

// Store is the persistence boundary of the send path. Every decision is made
// against the store's current state; there is no in-process cache, which is
// what keeps the subsystem correct across multiple service instances.
type Store interface {
	// InsertRecordIfAbsent atomically inserts rec unless a record with the
	// same idempotency key already exists. It returns the existing record and
	// created=false when the insert lost the race or the key was already
	// known; exactly one concurrent writer observes created=true.
	InsertRecordIfAbsent(rec *model.IdempotencyRecord) (existing *model.IdempotencyRecord, created bool, err error)

	// GetRecord returns the record for key, or nil when absent.
	GetRecord(key string) (*model.IdempotencyRecord, error)

	// MarkRecordSent transitions the record to sent with the given timestamp.
	// A record that is already sent is left untouched.
	MarkRecordSent(key string, sentAt time.Time) error

	// MarkRecordFailed transitions the record to failed. A record that is
	// already sent is left untouched.
	MarkRecordFailed(key string) error

	// FindRecentSent returns a sent record with the same recipient, email
	// type and content hash whose sentAt is at or after since, or nil.
	FindRecentSent(recipient string, emailType model.EmailType, contentHash string, since time.Time) (*model.IdempotencyRecord, error)

	// CountAttempts returns the number of attempt rows recorded for key.
	CountAttempts(key string) (int, error)

	// CreateAttempt inserts a new attempt row.
	CreateAttempt(att *model.SendAttempt) error

	// CompleteAttempt sets the terminal status of an attempt row. Attempts
	// that already completed are left untouched.
	CompleteAttempt(attemptID uint, status model.SendStatus, errorMessage string, completedAt time.Time) error

	// CreateDedupLog inserts an audit record of a prevented duplicate.
	CreateDedupLog(entry *model.DeduplicationLog) error
}
