package user

import "time"

// User is a household member known to the bot. Users are created on their
// first interaction and never deleted automatically.
type User struct {
	ID          int64
	DisplayName string
	CreatedAt   time.Time
}
