package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/keel/internal/models"
)

const entryColumns = "id, type, day, created_at, updated_at, fields, notes"

func scanEntry(row rowScanner) (models.Entry, error) {
	var e models.Entry
	var createdAt, updatedAt, fields string
	var notes sql.NullString

	if err := row.Scan(&e.ID, &e.Type, &e.Day, &createdAt, &updatedAt, &fields, &notes); err != nil {
		return models.Entry{}, err
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Entry{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Entry{}, err
	}
	if fields != "" && fields != "{}" {
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return models.Entry{}, fmt.Errorf("invalid fields for entry %s: %w", e.ID, err)
		}
	}
	e.Notes = nullString(notes)
	return e, nil
}

func encodeFields(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode entry fields: %w", err)
	}
	return string(data), nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]models.Entry, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetEntries(ctx context.Context, entryType string) ([]models.Entry, error) {
	if entryType == "" {
		return s.queryEntries(ctx, "SELECT "+entryColumns+" FROM entries ORDER BY created_at DESC")
	}
	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE type = ? ORDER BY created_at DESC", entryType)
}

func (s *Store) GetEntriesOnDay(ctx context.Context, entryType, day string) ([]models.Entry, error) {
	if entryType == "" {
		return s.queryEntries(ctx,
			"SELECT "+entryColumns+" FROM entries WHERE day = ? ORDER BY created_at DESC", day)
	}
	return s.queryEntries(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE type = ? AND day = ? ORDER BY created_at DESC", entryType, day)
}

func (s *Store) GetEntry(ctx context.Context, id string) (models.Entry, error) {
	q, err := s.conn()
	if err != nil {
		return models.Entry{}, err
	}
	e, err := scanEntry(q.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ?", id))
	if err != nil {
		return models.Entry{}, notFound(err, "entry", id)
	}
	return e, nil
}

func (s *Store) AddEntry(ctx context.Context, e models.Entry) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if ok, err := s.exists(ctx, q, "entries", e.ID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("entry %s: %w", e.ID, models.ErrDuplicateID)
	}
	fields, err := encodeFields(e.Fields)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		"INSERT INTO entries ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Type, e.Day, formatTime(e.CreatedAt), formatTime(e.UpdatedAt), fields, nullableString(e.Notes),
	)
	return err
}

func (s *Store) UpdateEntry(ctx context.Context, e models.Entry) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	fields, err := encodeFields(e.Fields)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE entries SET type = ?, day = ?, created_at = ?, updated_at = ?, fields = ?, notes = ?
		WHERE id = ?`,
		e.Type, e.Day, formatTime(e.CreatedAt), formatTime(e.UpdatedAt), fields, nullableString(e.Notes), e.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "entry", e.ID)
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "entry", id)
}
