package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"casemail-go/internal/model"
)

// Repository is the gorm-backed persistence layer for idempotency records,
// send attempts and deduplication logs.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertRecordIfAbsent inserts rec unless the idempotency key is taken. The
// unique index on idempotency_key decides the race: the insert is a single
// conditional write, and a loser re-reads the winning row.
func (r *Repository) InsertRecordIfAbsent(rec *model.IdempotencyRecord) (*model.IdempotencyRecord, bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to insert idempotency record: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return rec, true, nil
	}

	existing, err := r.GetRecord(rec.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("idempotency record for key %s vanished after conflicting insert", rec.IdempotencyKey)
	}
	return existing, false, nil
}

// GetRecord returns the record for key, or nil when absent.
func (r *Repository) GetRecord(key string) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	result := r.db.Where("idempotency_key = ?", key).First(&rec)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", result.Error)
	}
	return &rec, nil
}

// MarkRecordSent transitions the record to sent. A record already in the sent
// state keeps its original sent_at.
func (r *Repository) MarkRecordSent(key string, sentAt time.Time) error {
	result := r.db.Model(&model.IdempotencyRecord{}).
		Where("idempotency_key = ? AND status <> ?", key, model.StatusSent).
		Updates(map[string]interface{}{"status": model.StatusSent, "sent_at": sentAt})
	if result.Error != nil {
		return fmt.Errorf("failed to mark record sent: %w", result.Error)
	}
	return nil
}

// MarkRecordFailed transitions the record to failed without ever demoting a
// sent record.
func (r *Repository) MarkRecordFailed(key string) error {
	result := r.db.Model(&model.IdempotencyRecord{}).
		Where("idempotency_key = ? AND status <> ?", key, model.StatusSent).
		Update("status", model.StatusFailed)
	if result.Error != nil {
		return fmt.Errorf("failed to mark record failed: %w", result.Error)
	}
	return nil
}

// FindRecentSent returns the most recent sent record matching recipient,
// email type and content hash with sent_at at or after since, or nil.
func (r *Repository) FindRecentSent(recipient string, emailType model.EmailType, contentHash string, since time.Time) (*model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	result := r.db.
		Where("recipient = ? AND email_type = ? AND content_hash = ? AND status = ? AND sent_at >= ?",
			recipient, emailType, contentHash, model.StatusSent, since).
		Order("sent_at DESC").
		First(&rec)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query recent sends: %w", result.Error)
	}
	return &rec, nil
}

// CountAttempts returns the number of attempt rows for key.
func (r *Repository) CountAttempts(key string) (int, error) {
	var count int64
	result := r.db.Model(&model.SendAttempt{}).Where("idempotency_key = ?", key).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", result.Error)
	}
	return int(count), nil
}

// CreateAttempt inserts a new attempt row.
func (r *Repository) CreateAttempt(att *model.SendAttempt) error {
	result := r.db.Create(att)
	if result.Error != nil {
		return fmt.Errorf("failed to create attempt: %w", result.Error)
	}
	return nil
}

// CompleteAttempt sets the terminal outcome of an attempt row. Attempts are
// append-only: a completed row is never rewritten.
func (r *Repository) CompleteAttempt(attemptID uint, status model.SendStatus, errorMessage string, completedAt time.Time) error {
	result := r.db.Model(&model.SendAttempt{}).
		Where("id = ? AND completed_at IS NULL", attemptID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"completed_at":  completedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete attempt: %w", result.Error)
	}
	return nil
}

// GetAttempts returns all attempts for key ordered by attempt number.
func (r *Repository) GetAttempts(key string) ([]model.SendAttempt, error) {
	var attempts []model.SendAttempt
	result := r.db.Where("idempotency_key = ?", key).Order("attempt_number ASC").Find(&attempts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", result.Error)
	}
	return attempts, nil
}

// CreateDedupLog inserts an audit record of a prevented duplicate.
func (r *Repository) CreateDedupLog(entry *model.DeduplicationLog) error {
	result := r.db.Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to create deduplication log: %w", result.Error)
	}
	return nil
}

// ListDedupLogs returns deduplication log entries newest first, with the
// total count for pagination.
func (r *Repository) ListDedupLogs(offset, limit int) ([]model.DeduplicationLog, int64, error) {
	var total int64
	if err := r.db.Model(&model.DeduplicationLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deduplication logs: %w", err)
	}

	var logs []model.DeduplicationLog
	result := r.db.Order("prevented_at DESC").Offset(offset).Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list deduplication logs: %w", result.Error)
	}
	return logs, total, nil
}

// DeleteExpiredRecords removes idempotency records whose expires_at is before
// now, together with their attempt rows. Deletions are keyed so they never
// touch rows needed by in-flight sends.
func (r *Repository) DeleteExpiredRecords(now time.Time) (int64, int64, error) {
	expiredKeys := r.db.Model(&model.IdempotencyRecord{}).
		Select("idempotency_key").
		Where("expires_at < ?", now)

	attemptResult := r.db.Where("idempotency_key IN (?)", expiredKeys).Delete(&model.SendAttempt{})
	if attemptResult.Error != nil {
		return 0, 0, fmt.Errorf("failed to delete expired attempts: %w", attemptResult.Error)
	}

	recordResult := r.db.Where("expires_at < ?", now).Delete(&model.IdempotencyRecord{})
	if recordResult.Error != nil {
		return 0, attemptResult.RowsAffected, fmt.Errorf("failed to delete expired records: %w", recordResult.Error)
	}

	return recordResult.RowsAffected, attemptResult.RowsAffected, nil
}

// DeleteDedupLogsBefore removes deduplication log entries older than cutoff.
func (r *Repository) DeleteDedupLogsBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("prevented_at < ?", cutoff).Delete(&model.DeduplicationLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale deduplication logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DispatchStats summarizes send activity inside a trailing window.
type DispatchStats struct {
	TotalSent           int64 `json:"total_sent"`
	TotalFailed         int64 `json:"total_failed"`
	DuplicatesPrevented int64 `json:"duplicates_prevented"`
	RetryAttempts       int64 `json:"retry_attempts"`
	UniqueRecipients    int64 `json:"unique_recipients"`
}

// Stats computes dispatch statistics for activity at or after since.
func (r *Repository) Stats(since time.Time) (*DispatchStats, error) {
	var stats DispatchStats

	if err := r.db.Model(&model.SendAttempt{}).
		Where("status = ? AND attempted_at >= ?", model.StatusSent, since).
		Count(&stats.TotalSent).Error; err != nil {
		return nil, fmt.Errorf("failed to count sent attempts: %w", err)
	}

	if err := r.db.Model(&model.SendAttempt{}).
		Where("status = ? AND attempted_at >= ?", model.StatusFailed, since).
		Count(&stats.TotalFailed).Error; err != nil {
		return nil, fmt.Errorf("failed to count failed attempts: %w", err)
	}

	if err := r.db.Model(&model.DeduplicationLog{}).
		Where("prevented_at >= ?", since).
		Count(&stats.DuplicatesPrevented).Error; err != nil {
		return nil, fmt.Errorf("failed to count prevented duplicates: %w", err)
	}

	if err := r.db.Model(&model.SendAttempt{}).
		Where("attempt_number > 1 AND attempted_at >= ?", since).
		Count(&stats.RetryAttempts).Error; err != nil {
		return nil, fmt.Errorf("failed to count retry attempts: %w", err)
	}

	if err := r.db.Model(&model.IdempotencyRecord{}).
		Where("created_at >= ?", since).
		Distinct("recipient").
		Count(&stats.UniqueRecipients).Error; err != nil {
		return nil, fmt.Errorf("failed to count unique recipients: %w", err)
	}

	return &stats, nil
}
