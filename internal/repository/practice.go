package repository

import (
	"context"
	"fmt"

	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/temporal"
)

// Practice manages the weekly practice grid, keyed by period and slot.
type Practice struct {
	*base
	settings *Settings
}

func checkPeriod(period int) error {
	if period < 1 || period > constants.MaxPeriod {
		return fmt.Errorf("period %d (expected 1-%d): %w", period, constants.MaxPeriod, models.ErrInvalidPeriod)
	}
	return nil
}

func checkSlot(slot models.PracticeSlot) error {
	if !slot.Valid() {
		return fmt.Errorf("slot %q: %w", slot, models.ErrInvalidSlot)
	}
	return nil
}

// Upsert writes the content of one slot, replacing what was there.
func (r *Practice) Upsert(ctx context.Context, period int, slot models.PracticeSlot, content string) (models.PracticeEntry, error) {
	if err := checkPeriod(period); err != nil {
		return models.PracticeEntry{}, err
	}
	if err := checkSlot(slot); err != nil {
		return models.PracticeEntry{}, err
	}

	e := models.PracticeEntry{
		Period:    period,
		Slot:      slot,
		Content:   content,
		UpdatedAt: r.stamp(),
	}
	err := r.mutate(func() error {
		return r.p.UpsertPracticeEntry(ctx, e)
	})
	if err != nil {
		return models.PracticeEntry{}, fmt.Errorf("failed to save practice entry: %w", err)
	}
	return e, nil
}

// EntriesForWeek lists the filled slots of period in slot order.
func (r *Practice) EntriesForWeek(ctx context.Context, period int) ([]models.PracticeEntry, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	return r.p.GetPracticeEntries(ctx, period)
}

// EntriesHistory lists every practice entry by period, then slot.
func (r *Practice) EntriesHistory(ctx context.Context) ([]models.PracticeEntry, error) {
	return r.p.GetPracticeEntries(ctx, 0)
}

func (r *Practice) Delete(ctx context.Context, period int, slot models.PracticeSlot) error {
	if err := checkPeriod(period); err != nil {
		return err
	}
	if err := checkSlot(slot); err != nil {
		return err
	}
	err := r.mutate(func() error {
		return r.p.DeletePracticeEntry(ctx, period, slot)
	})
	if err != nil {
		return fmt.Errorf("failed to delete practice entry: %w", err)
	}
	return nil
}

// CurrentPeriod numbers today's week using the configured period mode.
func (r *Practice) CurrentPeriod(ctx context.Context) (int, error) {
	mode, err := r.settings.PeriodMode(ctx)
	if err != nil {
		return 0, err
	}
	// zero when unset, which Period treats as calendar numbering
	start, _, err := r.settings.PracticeStartDate(ctx)
	if err != nil {
		return 0, err
	}
	return temporal.Period(r.today(), mode, start), nil
}
