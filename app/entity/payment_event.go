package entity

import "time"

type PaymentEvent struct {
	ID uint64

	PaymentID uint64

	EventType string
	Source    string

	OldStatus *string
	NewStatus string

	PayloadJSON *string

	CreatedAt time.Time
}
