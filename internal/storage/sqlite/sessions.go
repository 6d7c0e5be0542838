package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/keel/internal/models"
)

const sessionColumns = "id, kind, start_at, end_at, notes, created_at, updated_at"

func scanSession(row rowScanner) (models.Session, error) {
	var sess models.Session
	var endAt, notes sql.NullString
	var startAt, createdAt, updatedAt string

	if err := row.Scan(&sess.ID, &sess.Kind, &startAt, &endAt, &notes, &createdAt, &updatedAt); err != nil {
		return models.Session{}, err
	}

	var err error
	sess.Notes = nullString(notes)
	if sess.StartAt, err = parseTime(startAt); err != nil {
		return models.Session{}, err
	}
	if sess.EndAt, err = parseNullTime(endAt); err != nil {
		return models.Session{}, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Session{}, err
	}
	if sess.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) GetSessions(ctx context.Context, kind string) ([]models.Session, error) {
	if kind == "" {
		return s.querySessions(ctx, "SELECT "+sessionColumns+" FROM sessions ORDER BY start_at DESC")
	}
	return s.querySessions(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE kind = ? ORDER BY start_at DESC", kind)
}

func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	q, err := s.conn()
	if err != nil {
		return models.Session{}, err
	}
	sess, err := scanSession(q.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if err != nil {
		return models.Session{}, notFound(err, "session", id)
	}
	return sess, nil
}

func (s *Store) GetOpenSession(ctx context.Context, kind string) (models.Session, error) {
	q, err := s.conn()
	if err != nil {
		return models.Session{}, err
	}
	sess, err := scanSession(q.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE kind = ? AND end_at IS NULL", kind))
	if err != nil {
		return models.Session{}, notFound(err, "open session of kind", kind)
	}
	return sess, nil
}

// openConflict reports whether another session of kind is open.
func (s *Store) openConflict(ctx context.Context, sess models.Session) error {
	if !sess.Open() {
		return nil
	}
	open, err := s.GetOpenSession(ctx, sess.Kind)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if open.ID != sess.ID {
		return fmt.Errorf("%s: %w", sess.Kind, models.ErrOpenSessionExists)
	}
	return nil
}

func (s *Store) AddSession(ctx context.Context, sess models.Session) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if ok, err := s.exists(ctx, q, "sessions", sess.ID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("session %s: %w", sess.ID, models.ErrDuplicateID)
	}
	if err := s.openConflict(ctx, sess); err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		sess.ID, sess.Kind, formatTime(sess.StartAt), nullableTime(sess.EndAt), nullableString(sess.Notes),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	return err
}

func (s *Store) UpdateSession(ctx context.Context, sess models.Session) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if err := s.openConflict(ctx, sess); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE sessions SET kind = ?, start_at = ?, end_at = ?, notes = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		sess.Kind, formatTime(sess.StartAt), nullableTime(sess.EndAt), nullableString(sess.Notes),
		formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt), sess.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "session", sess.ID)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "session", id)
}
