package model

import "time"

// DeduplicationLog is an audit record of a suppressed duplicate: OriginalKey
// identifies the send that won, DuplicateKey the one that was suppressed.
// Rows are purged after a fixed retention period independent of the
// idempotency record TTL.
type DeduplicationLog struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Recipient    string    `json:"recipient" gorm:"type:varchar(255);not null;index"`
	EmailType    EmailType `json:"email_type" gorm:"type:varchar(32);not null"`
	ContentHash  string    `json:"content_hash" gorm:"type:varchar(64);not null"`
	OriginalKey  string    `json:"original_key" gorm:"type:varchar(128);not null"`
	DuplicateKey string    `json:"duplicate_key" gorm:"type:varchar(128);not null"`
	PreventedAt  time.Time `json:"prevented_at" gorm:"not null;index"`
	Metadata     Metadata  `json:"metadata,omitempty" gorm:"type:text"`
}

// TableName specifies the table name for DeduplicationLog
func (DeduplicationLog) TableName() string {
	return "deduplication_logs"
}
