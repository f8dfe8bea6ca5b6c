package domain

import "time"

// AccessToken is the result of a successful login.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
	User      *User
}
