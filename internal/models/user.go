package models

import "time"

// User is a profile keyed by the dashboard's external user id.
type User struct {
	ID            string    `json:"user_id"`
	FirstName     string    `json:"first_name"`
	PhoneNumber   string    `json:"phone_number"`
	PhoneVerified bool      `json:"phone_verified"`
	TimeZone      string    `json:"time_zone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Zone returns the user's IANA zone name, "UTC" when unset.
func (u User) Zone() string {
	if u.TimeZone == "" {
		return "UTC"
	}
	return u.TimeZone
}

// ProfileUpdate holds the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	TimeZone  *string `json:"time_zone"`
}
