package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRecord is a payment joined with its course title.
type PurchaseRecord struct {
	PaymentID   uint64
	CourseTitle string
	Amount      decimal.Decimal
	Currency    string
	Status      string
	CreatedAt   time.Time
}
