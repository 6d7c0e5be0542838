package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/temporal"
)

// Counters manages streak counters and their day history.
type Counters struct {
	*base
}

func (r *Counters) GetAll(ctx context.Context) ([]models.Counter, error) {
	return r.p.GetCounters(ctx)
}

func (r *Counters) Get(ctx context.Context, id string) (models.Counter, error) {
	c, err := r.p.GetCounter(ctx, id)
	if err != nil {
		return models.Counter{}, fmt.Errorf("failed to get counter %s: %w", id, err)
	}
	return c, nil
}

// Create adds a counter at the end of the current order. A zero start date
// means now.
func (r *Counters) Create(ctx context.Context, in models.CounterInput) (models.Counter, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return models.Counter{}, invalid("counter name is required")
	}
	now := r.stamp()
	start := normalize(in.StartDate)
	if in.StartDate.IsZero() {
		start = now
	}
	if start.After(now) {
		return models.Counter{}, fmt.Errorf("counter start %s: %w", temporal.DateKey(start, r.loc), models.ErrFutureDate)
	}

	c := models.Counter{
		ID:                 uuid.New().String(),
		DisplayName:        name,
		PrivateName:        cleanText(in.PrivateName),
		StartDate:          start,
		CurrentStreakStart: start,
		LongestStreakDays:  temporal.LongestStreak(start, nil, r.today()),
		Notes:              cleanText(in.Notes),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := r.atomic(ctx, func(p storage.Provider) error {
		existing, err := p.GetCounters(ctx)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.OrderIndex >= c.OrderIndex {
				c.OrderIndex = e.OrderIndex + 1
			}
		}
		return p.AddCounter(ctx, c)
	})
	if err != nil {
		return models.Counter{}, fmt.Errorf("failed to create counter: %w", err)
	}
	return c, nil
}

// Update applies patch. Moving the start date recomputes the derived fields.
func (r *Counters) Update(ctx context.Context, id string, patch models.CounterPatch) (models.Counter, error) {
	if patch.DisplayName != nil && strings.TrimSpace(*patch.DisplayName) == "" {
		return models.Counter{}, invalid("counter name cannot be empty")
	}
	if patch.StartDate != nil && normalize(*patch.StartDate).After(r.stamp()) {
		return models.Counter{}, fmt.Errorf("counter start: %w", models.ErrFutureDate)
	}

	var updated models.Counter
	err := r.atomic(ctx, func(p storage.Provider) error {
		c, err := p.GetCounter(ctx, id)
		if err != nil {
			return err
		}
		if patch.DisplayName != nil {
			c.DisplayName = strings.TrimSpace(*patch.DisplayName)
		}
		c.PrivateName = optionalText(c.PrivateName, patch.PrivateName)
		c.Notes = optionalText(c.Notes, patch.Notes)

		if patch.StartDate != nil {
			c.StartDate = normalize(*patch.StartDate)
			history, err := p.GetCounterHistory(ctx, id)
			if err != nil {
				return err
			}
			r.derive(&c, history)
		}
		c.UpdatedAt = r.stamp()
		updated = c
		return p.UpdateCounter(ctx, c)
	})
	if err != nil {
		return models.Counter{}, fmt.Errorf("failed to update counter %s: %w", id, err)
	}
	return updated, nil
}

// derive recomputes the cached longest streak, and points the current
// streak at the latest remaining reset or the start date.
func (r *Counters) derive(c *models.Counter, history models.History) {
	today := r.today()
	c.LongestStreakDays = temporal.LongestStreak(c.StartDate, history, today)
	if last, ok := temporal.LastReset(c.StartDate, history, today); ok {
		c.CurrentStreakStart = normalize(last)
	} else {
		c.CurrentStreakStart = c.StartDate
	}
}

// Delete removes a counter together with its history.
func (r *Counters) Delete(ctx context.Context, id string) error {
	err := r.mutate(func() error {
		return r.p.DeleteCounter(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete counter %s: %w", id, err)
	}
	return nil
}

// ToggleDay flips day between maintained and reset. Adding a reset starts
// the current streak now; removing one moves it back to the latest remaining
// reset, or the start date.
func (r *Counters) ToggleDay(ctx context.Context, id string, day time.Time) (models.Counter, error) {
	today := r.today()
	key := temporal.DateKey(day, r.loc)
	if temporal.StartOfDay(day, r.loc).After(today) {
		return models.Counter{}, fmt.Errorf("cannot toggle %s: %w", key, models.ErrFutureDate)
	}

	var updated models.Counter
	err := r.atomic(ctx, func(p storage.Provider) error {
		c, err := p.GetCounter(ctx, id)
		if err != nil {
			return err
		}
		if temporal.DateKey(c.StartDate, r.loc) > key {
			return invalid("%s is before the counter started", key)
		}
		history, err := p.GetCounterHistory(ctx, id)
		if err != nil {
			return err
		}

		if maintained, ok := history[key]; ok && !maintained {
			if err := p.DeleteCounterDay(ctx, id, key); err != nil {
				return err
			}
			delete(history, key)
			r.derive(&c, history)
		} else {
			if err := p.SetCounterDay(ctx, id, key, false); err != nil {
				return err
			}
			history[key] = false
			c.LongestStreakDays = temporal.LongestStreak(c.StartDate, history, today)
			c.CurrentStreakStart = r.stamp()
		}

		c.UpdatedAt = r.stamp()
		updated = c
		return p.UpdateCounter(ctx, c)
	})
	if err != nil {
		return models.Counter{}, fmt.Errorf("failed to toggle %s for counter %s: %w", key, id, err)
	}
	return updated, nil
}

// Renew records that the user recommitted to the counter today.
func (r *Counters) Renew(ctx context.Context, id string) (models.Counter, error) {
	var updated models.Counter
	err := r.atomic(ctx, func(p storage.Provider) error {
		c, err := p.GetCounter(ctx, id)
		if err != nil {
			return err
		}
		now := r.stamp()
		c.LastRenewalAt = &now
		c.UpdatedAt = now
		updated = c
		return p.UpdateCounter(ctx, c)
	})
	if err != nil {
		return models.Counter{}, fmt.Errorf("failed to renew counter %s: %w", id, err)
	}
	return updated, nil
}

// Reorder moves the listed counters to the front in the given order. Counters
// not listed keep their relative order after them.
func (r *Counters) Reorder(ctx context.Context, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return invalid("counter %s listed twice", id)
		}
		seen[id] = true
	}

	err := r.atomic(ctx, func(p storage.Provider) error {
		all, err := p.GetCounters(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]models.Counter, len(all))
		for _, c := range all {
			byID[c.ID] = c
		}

		order := make([]models.Counter, 0, len(all))
		for _, id := range ids {
			c, ok := byID[id]
			if !ok {
				return fmt.Errorf("counter %s: %w", id, models.ErrNotFound)
			}
			order = append(order, c)
		}
		for _, c := range all {
			if !seen[c.ID] {
				order = append(order, c)
			}
		}

		now := r.stamp()
		for i, c := range order {
			if c.OrderIndex == i {
				continue
			}
			c.OrderIndex = i
			c.UpdatedAt = now
			if err := p.UpdateCounter(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reorder counters: %w", err)
	}
	return nil
}

// History returns the recorded days of a counter.
func (r *Counters) History(ctx context.Context, id string) (models.History, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	return r.p.GetCounterHistory(ctx, id)
}

// Stats derives the streak figures from the history rather than the cache.
func (r *Counters) Stats(ctx context.Context, id string) (models.CounterStats, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return models.CounterStats{}, err
	}
	history, err := r.p.GetCounterHistory(ctx, id)
	if err != nil {
		return models.CounterStats{}, err
	}

	s := temporal.StreakStats(c.StartDate, history, r.today())
	return models.CounterStats{
		CurrentStreakDays: s.Current,
		LongestStreakDays: s.Longest,
		ResetCount:        s.Resets,
		Elapsed:           temporal.Elapsed(c.CurrentStreakStart, r.now()),
	}, nil
}
