package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EmailType classifies the business purpose of an outbound email
type EmailType string

const (
	EmailTypeNotification EmailType = "notification"
	EmailTypeApproval     EmailType = "approval"
	EmailTypeCampaign     EmailType = "campaign"
	EmailTypeSystem       EmailType = "system"
)

// SendStatus represents the lifecycle state of a record or attempt
type SendStatus string

const (
	StatusPending SendStatus = "pending"
	StatusSent    SendStatus = "sent"
	StatusFailed  SendStatus = "failed"
)

// Metadata carries opaque caller context (case id, campaign id, user id)
// and is stored as a JSON text column
type Metadata map[string]string

// Value implements driver.Valuer for database storage
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
