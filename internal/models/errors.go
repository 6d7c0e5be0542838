package models

import "errors"

var (
	// ErrNotFound is returned when an update, delete or lookup targets an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOpenSessionExists is returned when a second open session of the same kind is created.
	ErrOpenSessionExists = errors.New("an open session of this kind already exists")
	// ErrNoOpenSession is returned when ending a session kind that has none open.
	ErrNoOpenSession = errors.New("no open session")
	// ErrInvalidTimeRange is returned when a session ends at or before its start.
	ErrInvalidTimeRange = errors.New("invalid time range: end must be after start")
	// ErrDuplicateID is returned when a record is inserted with an id that already exists.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrFutureDate is returned when a history day after today is toggled.
	ErrFutureDate = errors.New("date is in the future")
	// ErrInvalidSlot is returned for practice slots outside the known set.
	ErrInvalidSlot = errors.New("invalid practice slot")
	// ErrInvalidPeriod is returned for practice periods outside 1..52.
	ErrInvalidPeriod = errors.New("invalid practice period")
)
