package models

import (
	"encoding/json"
	"time"
)

// PracticeSlot identifies one of the seven slots of a practice week.
type PracticeSlot string

const (
	SlotMonday    PracticeSlot = "mon"
	SlotTuesday   PracticeSlot = "tue"
	SlotWednesday PracticeSlot = "wed"
	SlotThursday  PracticeSlot = "thu"
	SlotFriday    PracticeSlot = "fri"
	SlotSaturday  PracticeSlot = "sat"
	SlotReview    PracticeSlot = "review"
)

// PracticeSlots lists the slots in display order.
var PracticeSlots = []PracticeSlot{
	SlotMonday, SlotTuesday, SlotWednesday, SlotThursday, SlotFriday, SlotSaturday, SlotReview,
}

// Valid reports whether s is a known slot.
func (s PracticeSlot) Valid() bool {
	for _, known := range PracticeSlots {
		if s == known {
			return true
		}
	}
	return false
}

// PracticeEntry is composite-keyed by (Period, Slot).
type PracticeEntry struct {
	Period    int          `json:"period"`
	Slot      PracticeSlot `json:"slot"`
	Content   string       `json:"content"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SettingEntry is a raw settings row; Value holds JSON.
type SettingEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}
