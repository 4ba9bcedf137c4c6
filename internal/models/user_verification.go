package models

import "time"

// UserVerification is one record per code sent. Only the bcrypt hash of the
// code is kept, together with its TTL and an attempts counter.
type UserVerification struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	PhoneNumber string    `json:"phone_number"`
	CodeHash    string    `json:"-"`
	SentAt      time.Time `json:"sent_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Confirmed   bool      `json:"confirmed"`
	Attempts    int       `json:"attempts"`
}
