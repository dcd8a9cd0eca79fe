package entity

import "time"

// User is a Telegram account that has talked to the bot. ID is the Telegram
// user id.
type User struct {
	ID        int64
	Username  string
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
