package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/temporal"
)

// Sessions manages time-bounded sessions such as fasts.
type Sessions struct {
	*base
}

// GetAll lists sessions of kind, newest first. An empty kind lists all.
func (r *Sessions) GetAll(ctx context.Context, kind string) ([]models.Session, error) {
	return r.p.GetSessions(ctx, kind)
}

func (r *Sessions) Get(ctx context.Context, id string) (models.Session, error) {
	s, err := r.p.GetSession(ctx, id)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

func checkRange(start time.Time, end *time.Time) error {
	if end != nil && !end.After(start) {
		return fmt.Errorf("session %s to %s: %w",
			start.Format(time.RFC3339), end.Format(time.RFC3339), models.ErrInvalidTimeRange)
	}
	return nil
}

// checkNoOpen fails when kind already has an open session other than exceptID.
func checkNoOpen(ctx context.Context, p storage.Provider, kind, exceptID string) error {
	open, err := p.GetOpenSession(ctx, kind)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if open.ID == exceptID {
		return nil
	}
	return fmt.Errorf("%s session %s is still open: %w", kind, open.ID, models.ErrOpenSessionExists)
}

// Create records a session. A session without an end is open, and only one
// open session per kind is allowed.
func (r *Sessions) Create(ctx context.Context, in models.SessionInput) (models.Session, error) {
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		return models.Session{}, invalid("session kind is required")
	}
	if in.StartAt.IsZero() {
		return models.Session{}, invalid("session start is required")
	}
	start := normalize(in.StartAt)
	end := normalizePtr(in.EndAt)
	if err := checkRange(start, end); err != nil {
		return models.Session{}, err
	}

	now := r.stamp()
	s := models.Session{
		ID:        uuid.New().String(),
		Kind:      kind,
		StartAt:   start,
		EndAt:     end,
		Notes:     cleanText(in.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.atomic(ctx, func(p storage.Provider) error {
		if s.EndAt == nil {
			if err := checkNoOpen(ctx, p, kind, ""); err != nil {
				return err
			}
		}
		return p.AddSession(ctx, s)
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// Update applies patch. ClearEnd reopens the session.
func (r *Sessions) Update(ctx context.Context, id string, patch models.SessionPatch) (models.Session, error) {
	if patch.ClearEnd && patch.EndAt != nil {
		return models.Session{}, invalid("cannot set and clear the end of a session")
	}

	var updated models.Session
	err := r.atomic(ctx, func(p storage.Provider) error {
		s, err := p.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if patch.StartAt != nil {
			s.StartAt = normalize(*patch.StartAt)
		}
		if patch.EndAt != nil {
			s.EndAt = normalizePtr(patch.EndAt)
		}
		if patch.ClearEnd {
			s.EndAt = nil
		}
		s.Notes = optionalText(s.Notes, patch.Notes)

		if err := checkRange(s.StartAt, s.EndAt); err != nil {
			return err
		}
		if s.EndAt == nil {
			if err := checkNoOpen(ctx, p, s.Kind, s.ID); err != nil {
				return err
			}
		}
		s.UpdatedAt = r.stamp()
		updated = s
		return p.UpdateSession(ctx, s)
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return updated, nil
}

func (r *Sessions) Delete(ctx context.Context, id string) error {
	err := r.mutate(func() error {
		return r.p.DeleteSession(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// Start opens a session of kind now.
func (r *Sessions) Start(ctx context.Context, kind string) (models.Session, error) {
	return r.Create(ctx, models.SessionInput{Kind: kind, StartAt: r.now()})
}

// End closes the open session of kind now.
func (r *Sessions) End(ctx context.Context, kind string) (models.Session, error) {
	var ended models.Session
	err := r.atomic(ctx, func(p storage.Provider) error {
		s, err := p.GetOpenSession(ctx, kind)
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%s: %w", kind, models.ErrNoOpenSession)
		}
		if err != nil {
			return err
		}
		end := r.stamp()
		if err := checkRange(s.StartAt, &end); err != nil {
			return err
		}
		s.EndAt = &end
		s.UpdatedAt = end
		ended = s
		return p.UpdateSession(ctx, s)
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to end session: %w", err)
	}
	return ended, nil
}

// ActiveSession returns the open session of kind, or nil.
func (r *Sessions) ActiveSession(ctx context.Context, kind string) (*models.Session, error) {
	s, err := r.p.GetOpenSession(ctx, kind)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Sessions) intervals(ctx context.Context, kind string) ([]temporal.Interval, error) {
	sessions, err := r.p.GetSessions(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]temporal.Interval, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, temporal.Interval{Start: s.StartAt, End: s.EndAt})
	}
	return out, nil
}

// HoursForDate sums the hours sessions of kind spent inside day's calendar
// date. Open sessions count up to now.
func (r *Sessions) HoursForDate(ctx context.Context, kind string, day time.Time) (float64, error) {
	intervals, err := r.intervals(ctx, kind)
	if err != nil {
		return 0, err
	}
	return temporal.OverlapHours(intervals, day.In(r.loc), r.now()), nil
}

// HoursForDates is HoursForDate for many days, keyed by date key.
func (r *Sessions) HoursForDates(ctx context.Context, kind string, days []time.Time) (map[string]float64, error) {
	intervals, err := r.intervals(ctx, kind)
	if err != nil {
		return nil, err
	}
	local := make([]time.Time, len(days))
	for i, d := range days {
		local[i] = d.In(r.loc)
	}
	return temporal.OverlapHoursBatch(intervals, local, r.now()), nil
}
