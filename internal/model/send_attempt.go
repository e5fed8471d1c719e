package model

import "time"

// SendAttempt records one physical transport call for an idempotency key.
// Attempts are append-only: once CompletedAt is set the row is never changed.
type SendAttempt struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	IdempotencyKey string     `json:"idempotency_key" gorm:"type:varchar(128);not null;index"`
	AttemptNumber  int        `json:"attempt_number" gorm:"not null"`
	Status         SendStatus `json:"status" gorm:"type:varchar(16);not null"`
	ErrorMessage   string     `json:"error_message,omitempty" gorm:"type:text"`
	AttemptedAt    time.Time  `json:"attempted_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// TableName specifies the table name for SendAttempt
func (SendAttempt) TableName() string {
	return "send_attempts"
}
