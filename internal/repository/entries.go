package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/temporal"
)

// Entries manages dated records such as check-ins and inventories.
type Entries struct {
	*base
}

func (r *Entries) GetAll(ctx context.Context) ([]models.Entry, error) {
	return r.p.GetEntries(ctx, "")
}

func (r *Entries) ByType(ctx context.Context, entryType string) ([]models.Entry, error) {
	return r.p.GetEntries(ctx, entryType)
}

func (r *Entries) Get(ctx context.Context, id string) (models.Entry, error) {
	e, err := r.p.GetEntry(ctx, id)
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to get entry %s: %w", id, err)
	}
	return e, nil
}

// Create stores an entry. Its day is the creation date in the user's
// location.
func (r *Entries) Create(ctx context.Context, in models.EntryInput) (models.Entry, error) {
	entryType := strings.TrimSpace(in.Type)
	if entryType == "" {
		return models.Entry{}, invalid("entry type is required")
	}
	now := r.stamp()
	created := now
	if in.CreatedAt != nil {
		created = normalize(*in.CreatedAt)
	}

	e := models.Entry{
		ID:        uuid.New().String(),
		Type:      entryType,
		Day:       temporal.DateKey(created, r.loc),
		CreatedAt: created,
		UpdatedAt: now,
		Notes:     cleanText(in.Notes),
	}
	for k, v := range in.Fields {
		if v == nil {
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string]any, len(in.Fields))
		}
		e.Fields[k] = v
	}

	err := r.mutate(func() error {
		return r.p.AddEntry(ctx, e)
	})
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to create entry: %w", err)
	}
	return e, nil
}

// Update merges patch.Fields into the entry key by key; a nil value removes
// the key.
func (r *Entries) Update(ctx context.Context, id string, patch models.EntryPatch) (models.Entry, error) {
	var updated models.Entry
	err := r.atomic(ctx, func(p storage.Provider) error {
		e, err := p.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		for k, v := range patch.Fields {
			if v == nil {
				delete(e.Fields, k)
				continue
			}
			if e.Fields == nil {
				e.Fields = make(map[string]any)
			}
			e.Fields[k] = v
		}
		if len(e.Fields) == 0 {
			e.Fields = nil
		}
		e.Notes = optionalText(e.Notes, patch.Notes)
		e.UpdatedAt = r.stamp()
		updated = e
		return p.UpdateEntry(ctx, e)
	})
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to update entry %s: %w", id, err)
	}
	return updated, nil
}

func (r *Entries) Delete(ctx context.Context, id string) error {
	err := r.mutate(func() error {
		return r.p.DeleteEntry(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return nil
}

// Today returns the entries of entryType created on today's calendar date,
// newest first. The first one is the canonical entry for the day.
func (r *Entries) Today(ctx context.Context, entryType string) ([]models.Entry, error) {
	return r.p.GetEntriesOnDay(ctx, entryType, temporal.DateKey(r.now(), r.loc))
}
