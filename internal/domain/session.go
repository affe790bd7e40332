package domain

import "time"

// Session is a cookie-backed login session. Many sessions may exist per user
// (multi-device); each is destroyed on logout, revocation or expiry.
type Session struct {
	SessionID      string    `json:"id" dynamodbav:"session_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	ExpirationDate time.Time `json:"expiration_date" dynamodbav:"expiration_date"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
	User           *User     `json:"user,omitempty" dynamodbav:"-"`
}

// Expired reports whether the session is past its expiration date.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpirationDate)
}
