package sqlite

import (
	"context"
	"fmt"

	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/storage"
)

func (s *Store) UpsertPracticeEntry(ctx context.Context, p models.PracticeEntry) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO practice_entries (period, slot, content, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (period, slot) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		p.Period, string(p.Slot), p.Content, formatTime(p.UpdatedAt),
	)
	return err
}

func (s *Store) GetPracticeEntries(ctx context.Context, period int) ([]models.PracticeEntry, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}

	query := "SELECT period, slot, content, updated_at FROM practice_entries"
	var args []any
	if period > 0 {
		query += " WHERE period = ?"
		args = append(args, period)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PracticeEntry
	for rows.Next() {
		var p models.PracticeEntry
		var slot, updatedAt string
		if err := rows.Scan(&p.Period, &slot, &p.Content, &updatedAt); err != nil {
			return nil, err
		}
		p.Slot = models.PracticeSlot(slot)
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	storage.SortPractice(entries)
	return entries, nil
}

func (s *Store) DeletePracticeEntry(ctx context.Context, period int, slot models.PracticeSlot) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, "DELETE FROM practice_entries WHERE period = ? AND slot = ?", period, string(slot))
	if err != nil {
		return err
	}
	return requireAffected(res, "practice entry", fmt.Sprintf("%d/%s", period, slot))
}
