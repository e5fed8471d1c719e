package model

import "time"

// IdempotencyRecord tracks one logical email send to guarantee at-most-one
// delivery per idempotency key. Once Status is "sent" the record is immutable
// until the retention sweep deletes it.
type IdempotencyRecord struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	IdempotencyKey string     `json:"idempotency_key" gorm:"type:varchar(128);not null;uniqueIndex"`
	EmailType      EmailType  `json:"email_type" gorm:"type:varchar(32);not null;index:idx_content_lookup"`
	Recipient      string     `json:"recipient" gorm:"type:varchar(255);not null;index:idx_content_lookup"`
	ContentHash    string     `json:"content_hash" gorm:"type:varchar(64);not null;index:idx_content_lookup"`
	Status         SendStatus `json:"status" gorm:"type:varchar(16);not null"`
	SentAt         *time.Time `json:"sent_at"`
	Metadata       Metadata   `json:"metadata,omitempty" gorm:"type:text"`
	ExpiresAt      time.Time  `json:"expires_at" gorm:"not null;index"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TableName specifies the table name for IdempotencyRecord
func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
