package models

import "time"

// Counter is a tracked streak counter, e.g. days without alcohol.
type Counter struct {
	ID                 string     `json:"id"`
	DisplayName        string     `json:"display_name"`
	PrivateName        *string    `json:"private_name,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	CurrentStreakStart time.Time  `json:"current_streak_start"`
	LongestStreakDays  int        `json:"longest_streak_days"` // cache, recomputed from History
	Notes              *string    `json:"notes,omitempty"`
	OrderIndex         int        `json:"order_index"`
	LastRenewalAt      *time.Time `json:"last_renewal_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// History maps a date key (YYYY-MM-DD) to whether the day was maintained.
// false marks a reset event; absent days count as maintained.
type History map[string]bool

// Clone returns a copy of the history map.
func (h History) Clone() History {
	out := make(History, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// CounterInput holds the fields accepted when creating a counter.
type CounterInput struct {
	DisplayName string
	PrivateName *string
	StartDate   time.Time
	Notes       *string
}

// CounterPatch holds a partial counter update. Nil fields are left unchanged;
// an empty string clears an optional text field.
type CounterPatch struct {
	DisplayName *string
	PrivateName *string
	StartDate   *time.Time
	Notes       *string
}

// CounterStats is the derived view of a counter at a point in time.
type CounterStats struct {
	CurrentStreakDays int
	LongestStreakDays int
	ResetCount        int
	Elapsed           Elapsed
}

// Elapsed decomposes the time since an instant.
type Elapsed struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
	// Calendar-aware decomposition.
	Years         int
	Months        int
	RemainingDays int
}
