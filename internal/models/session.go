package models

import "time"

// Session is a time-bounded session such as a fast. EndAt is nil while the
// session is open.
type Session struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	StartAt   time.Time  `json:"start_at"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Open reports whether the session has not ended yet.
func (s Session) Open() bool {
	return s.EndAt == nil
}

// SessionInput holds the fields accepted when creating a session.
type SessionInput struct {
	Kind    string
	StartAt time.Time
	EndAt   *time.Time
	Notes   *string
}

// SessionPatch holds a partial session update. ClearEnd reopens the session.
type SessionPatch struct {
	StartAt  *time.Time
	EndAt    *time.Time
	ClearEnd bool
	Notes    *string
}
