package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"taskbuddy/internal/timeparse"
)

// TimeType defines how a task's time is presented and whether it is swept.
type TimeType string

const (
	TimeTypeNone      TimeType = "none"
	TimeTypeScheduled TimeType = "scheduled"
	TimeTypeDeadline  TimeType = "deadline"
)

func (t TimeType) Valid() bool {
	switch t {
	case TimeTypeNone, TimeTypeScheduled, TimeTypeDeadline:
		return true
	}
	return false
}

// ParseTimeType accepts the stored names plus "due" as an alias for deadline.
// Empty input means none.
func ParseTimeType(s string) (TimeType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TimeTypeNone, true
	case "scheduled":
		return TimeTypeScheduled, true
	case "deadline", "due":
		return TimeTypeDeadline, true
	}
	return "", false
}

// Label is the wording shown next to the time ("Scheduled" vs "Due").
func (t TimeType) Label() string {
	switch t {
	case TimeTypeScheduled:
		return "Scheduled"
	case TimeTypeDeadline:
		return "Due"
	}
	return ""
}

// TimeValue is either a pending free-text phrase or a resolved UTC instant.
// The zero value is empty (no time).
type TimeValue struct {
	pending  string
	instant  time.Time
	resolved bool
}

func Pending(phrase string) TimeValue {
	return TimeValue{pending: strings.TrimSpace(phrase)}
}

func Resolved(t time.Time) TimeValue {
	return TimeValue{instant: t.UTC(), resolved: true}
}

// ParseTimeValue classifies a stored string: only a strict UTC timestamp with
// a Z suffix counts as resolved, anything else is pending text.
func ParseTimeValue(s string) TimeValue {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeValue{}
	}
	if timeparse.IsUTCInstant(s) {
		if t, err := timeparse.ParseUTCInstant(s); err == nil {
			return Resolved(t)
		}
	}
	return Pending(s)
}

func (v TimeValue) IsEmpty() bool    { return !v.resolved && v.pending == "" }
func (v TimeValue) IsResolved() bool { return v.resolved }
func (v TimeValue) IsPending() bool  { return !v.resolved && v.pending != "" }

// Instant returns the resolved UTC instant.
func (v TimeValue) Instant() (time.Time, bool) {
	return v.instant, v.resolved
}

// Phrase returns the pending text.
func (v TimeValue) Phrase() string { return v.pending }

// String is the stored representation.
func (v TimeValue) String() string {
	if v.resolved {
		return timeparse.FormatInstant(v.instant)
	}
	return v.pending
}

// Value implements driver.Valuer. Empty values are stored as NULL.
func (v TimeValue) Value() (driver.Value, error) {
	if v.IsEmpty() {
		return nil, nil
	}
	return v.String(), nil
}

// Scan implements sql.Scanner.
func (v *TimeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = TimeValue{}
	case string:
		*v = ParseTimeValue(s)
	case []byte:
		*v = ParseTimeValue(string(s))
	case time.Time:
		*v = Resolved(s)
	default:
		return fmt.Errorf("models: cannot scan %T into TimeValue", src)
	}
	return nil
}

func (v TimeValue) MarshalJSON() ([]byte, error) {
	if v.IsEmpty() {
		return []byte("null"), nil
	}
	return json.Marshal(v.String())
}

func (v *TimeValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = TimeValue{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = ParseTimeValue(s)
	return nil
}

// Task is a to-do item owned by a user. The JSON shape mirrors the dashboard
// "box" representation.
type Task struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	Content        string    `json:"content"`
	TimeType       TimeType  `json:"time_type"`
	TimeValue      TimeValue `json:"time_value"`
	ReminderOffset *int      `json:"reminder_offset"`
	ReminderSent   bool      `json:"reminder_sent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TimeResolved mirrors TimeValue.IsResolved for API clients.
func (t Task) TimeResolved() bool { return t.TimeValue.IsResolved() }

// ReminderAt is the instant the reminder should fire.
func (t Task) ReminderAt() (time.Time, bool) {
	at, ok := t.TimeValue.Instant()
	if !ok || t.ReminderOffset == nil {
		return time.Time{}, false
	}
	return at.Add(-time.Duration(*t.ReminderOffset) * time.Minute), true
}

// DueCandidate is a task joined with its owner's delivery details for a
// reminder sweep. OwnerFound is false when the row references a missing user.
type DueCandidate struct {
	Task
	OwnerFound    bool
	PhoneNumber   string
	PhoneVerified bool
	TimeZone      string
}
