package entity

import "time"

type Entitlement struct {
	UserID    int64
	CourseID  uint64
	PaymentID *uint64
	CreatedAt time.Time
}

// OwnedCourse is an entitlement joined with the course it unlocks.
type OwnedCourse struct {
	CourseID      uint64
	Title         string
	MaterialsLink string
	GrantedAt     time.Time
}
