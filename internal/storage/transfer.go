package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/keel/internal/logger"
	"github.com/julianstephens/keel/internal/models"
)

// TransferResult counts the records moved by Transfer.
type TransferResult struct {
	Settings int
	Counters int
	Sessions int
	Entries  int
	Practice int

	// Skipped lists records that stayed in the source because dst already
	// holds a conflicting record. They need the user to resolve them.
	Skipped []SkippedRecord
}

// SkippedRecord names one record Transfer left behind.
type SkippedRecord struct {
	Kind   string
	ID     string
	Reason string
}

// Total returns the number of records moved.
func (r TransferResult) Total() int {
	return r.Settings + r.Counters + r.Sessions + r.Entries + r.Practice
}

// Transfer copies every domain record from src into dst in a single atomic
// write, then removes the copied records from src. Settings keys listed in
// keep are neither copied nor removed. Records whose id already exists in
// dst, and open sessions whose kind is already running in dst, are left in
// src untouched and reported in Skipped.
func Transfer(ctx context.Context, src, dst Provider, keep ...string) (TransferResult, error) {
	var res TransferResult
	skip := make(map[string]bool, len(keep))
	for _, k := range keep {
		skip[k] = true
	}

	settings, err := src.ListSettings(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read settings: %w", err)
	}
	counters, err := src.GetCounters(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read counters: %w", err)
	}
	histories := make(map[string]models.History, len(counters))
	for _, c := range counters {
		h, err := src.GetCounterHistory(ctx, c.ID)
		if err != nil {
			return res, fmt.Errorf("failed to read history for counter %s: %w", c.ID, err)
		}
		histories[c.ID] = h
	}
	sessions, err := src.GetSessions(ctx, "")
	if err != nil {
		return res, fmt.Errorf("failed to read sessions: %w", err)
	}
	entries, err := src.GetEntries(ctx, "")
	if err != nil {
		return res, fmt.Errorf("failed to read entries: %w", err)
	}
	practice, err := src.GetPracticeEntries(ctx, 0)
	if err != nil {
		return res, fmt.Errorf("failed to read practice entries: %w", err)
	}

	var moved struct {
		settings []string
		counters []string
		sessions []string
		entries  []string
		practice []models.PracticeEntry
		skipped  []SkippedRecord
	}

	err = dst.Atomic(ctx, func(tx Provider) error {
		for _, s := range settings {
			if skip[s.Key] {
				continue
			}
			if _, exists, err := tx.GetSetting(ctx, s.Key); err != nil {
				return err
			} else if exists {
				moved.skipped = append(moved.skipped, SkippedRecord{Kind: "setting", ID: s.Key, Reason: "already set"})
				continue
			}
			if err := tx.SetSetting(ctx, s.Key, s.Value); err != nil {
				return fmt.Errorf("failed to copy setting %s: %w", s.Key, err)
			}
			moved.settings = append(moved.settings, s.Key)
		}

		for _, c := range counters {
			if err := tx.AddCounter(ctx, c); err != nil {
				if isDuplicate(err) {
					moved.skipped = append(moved.skipped, SkippedRecord{Kind: "counter", ID: c.ID, Reason: "duplicate id"})
					continue
				}
				return fmt.Errorf("failed to copy counter %s: %w", c.ID, err)
			}
			for day, maintained := range histories[c.ID] {
				if err := tx.SetCounterDay(ctx, c.ID, day, maintained); err != nil {
					return fmt.Errorf("failed to copy history for counter %s: %w", c.ID, err)
				}
			}
			moved.counters = append(moved.counters, c.ID)
		}

		for _, s := range sessions {
			if err := tx.AddSession(ctx, s); err != nil {
				switch {
				case isDuplicate(err):
					moved.skipped = append(moved.skipped, SkippedRecord{Kind: "session", ID: s.ID, Reason: "duplicate id"})
					continue
				case errors.Is(err, models.ErrOpenSessionExists):
					moved.skipped = append(moved.skipped, SkippedRecord{
						Kind: "session", ID: s.ID, Reason: "an open " + s.Kind + " session is already running",
					})
					continue
				}
				return fmt.Errorf("failed to copy session %s: %w", s.ID, err)
			}
			moved.sessions = append(moved.sessions, s.ID)
		}

		for _, e := range entries {
			if err := tx.AddEntry(ctx, e); err != nil {
				if isDuplicate(err) {
					moved.skipped = append(moved.skipped, SkippedRecord{Kind: "entry", ID: e.ID, Reason: "duplicate id"})
					continue
				}
				return fmt.Errorf("failed to copy entry %s: %w", e.ID, err)
			}
			moved.entries = append(moved.entries, e.ID)
		}

		for _, p := range practice {
			if err := tx.UpsertPracticeEntry(ctx, p); err != nil {
				return fmt.Errorf("failed to copy practice entry %d/%s: %w", p.Period, p.Slot, err)
			}
			moved.practice = append(moved.practice, p)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	res = TransferResult{
		Settings: len(moved.settings),
		Counters: len(moved.counters),
		Sessions: len(moved.sessions),
		Entries:  len(moved.entries),
		Practice: len(moved.practice),
		Skipped:  moved.skipped,
	}
	for _, sk := range res.Skipped {
		logger.Warn("Record left in source store",
			"backend", src.Backend(), "kind", sk.Kind, "id", sk.ID, "reason", sk.Reason)
	}

	err = src.Atomic(ctx, func(tx Provider) error {
		for _, k := range moved.settings {
			if err := tx.DeleteSetting(ctx, k); err != nil {
				return err
			}
		}
		for _, id := range moved.counters {
			if err := tx.DeleteCounter(ctx, id); err != nil {
				return err
			}
		}
		for _, id := range moved.sessions {
			if err := tx.DeleteSession(ctx, id); err != nil {
				return err
			}
		}
		for _, id := range moved.entries {
			if err := tx.DeleteEntry(ctx, id); err != nil {
				return err
			}
		}
		for _, p := range moved.practice {
			if err := tx.DeletePracticeEntry(ctx, p.Period, p.Slot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The copy already committed; leftovers are skipped as duplicates next time.
		logger.Warn("Failed to clear transferred records from source", "backend", src.Backend(), "error", err)
	}

	if res.Total() > 0 {
		logger.Info("Transferred records between backends",
			"from", src.Backend(), "to", dst.Backend(),
			"settings", res.Settings, "counters", res.Counters,
			"sessions", res.Sessions, "entries", res.Entries, "practice", res.Practice)
	}
	return res, nil
}

// HasData reports whether p holds any domain record besides the settings
// keys listed in keep.
func HasData(ctx context.Context, p Provider, keep ...string) (bool, error) {
	skip := make(map[string]bool, len(keep))
	for _, k := range keep {
		skip[k] = true
	}
	settings, err := p.ListSettings(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range settings {
		if !skip[s.Key] {
			return true, nil
		}
	}
	if cs, err := p.GetCounters(ctx); err != nil || len(cs) > 0 {
		return len(cs) > 0, err
	}
	if ss, err := p.GetSessions(ctx, ""); err != nil || len(ss) > 0 {
		return len(ss) > 0, err
	}
	if es, err := p.GetEntries(ctx, ""); err != nil || len(es) > 0 {
		return len(es) > 0, err
	}
	ps, err := p.GetPracticeEntries(ctx, 0)
	return len(ps) > 0, err
}

func isDuplicate(err error) bool {
	return errors.Is(err, models.ErrDuplicateID)
}
