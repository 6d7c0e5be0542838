package models

import "time"

// Entry is a dated record such as a check-in, inventory or diary entry.
// Day is the creation date key in the user's location.
type Entry struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Day       string         `json:"day"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"fields,omitempty"`
	Notes     *string        `json:"notes,omitempty"`
}

// EntryInput holds the fields accepted when creating an entry.
type EntryInput struct {
	Type      string
	CreatedAt *time.Time // defaults to now
	Fields    map[string]any
	Notes     *string
}

// EntryPatch holds a partial entry update. Fields are merged key by key;
// a nil value removes the key.
type EntryPatch struct {
	Fields map[string]any
	Notes  *string
}
