package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/keel/internal/models"
)

const counterColumns = `id, display_name, private_name, start_date, current_streak_start,
	longest_streak_days, notes, order_index, last_renewal_at, created_at, updated_at`

func scanCounter(row rowScanner) (models.Counter, error) {
	var c models.Counter
	var privateName, notes, lastRenewal sql.NullString
	var startDate, streakStart, createdAt, updatedAt string

	err := row.Scan(
		&c.ID, &c.DisplayName, &privateName, &startDate, &streakStart,
		&c.LongestStreakDays, &notes, &c.OrderIndex, &lastRenewal, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Counter{}, err
	}

	c.PrivateName = nullString(privateName)
	c.Notes = nullString(notes)
	if c.StartDate, err = parseTime(startDate); err != nil {
		return models.Counter{}, err
	}
	if c.CurrentStreakStart, err = parseTime(streakStart); err != nil {
		return models.Counter{}, err
	}
	if c.LastRenewalAt, err = parseNullTime(lastRenewal); err != nil {
		return models.Counter{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Counter{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return models.Counter{}, err
	}
	return c, nil
}

func (s *Store) GetCounters(ctx context.Context) ([]models.Counter, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, "SELECT "+counterColumns+" FROM counters ORDER BY order_index, created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []models.Counter
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

func (s *Store) GetCounter(ctx context.Context, id string) (models.Counter, error) {
	q, err := s.conn()
	if err != nil {
		return models.Counter{}, err
	}
	c, err := scanCounter(q.QueryRowContext(ctx, "SELECT "+counterColumns+" FROM counters WHERE id = ?", id))
	if err != nil {
		return models.Counter{}, notFound(err, "counter", id)
	}
	return c, nil
}

func (s *Store) exists(ctx context.Context, q querier, table, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AddCounter(ctx context.Context, c models.Counter) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if ok, err := s.exists(ctx, q, "counters", c.ID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("counter %s: %w", c.ID, models.ErrDuplicateID)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO counters (`+counterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.DisplayName, nullableString(c.PrivateName), formatTime(c.StartDate), formatTime(c.CurrentStreakStart),
		c.LongestStreakDays, nullableString(c.Notes), c.OrderIndex, nullableTime(c.LastRenewalAt),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return err
}

func (s *Store) UpdateCounter(ctx context.Context, c models.Counter) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE counters SET display_name = ?, private_name = ?, start_date = ?, current_streak_start = ?,
			longest_streak_days = ?, notes = ?, order_index = ?, last_renewal_at = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		c.DisplayName, nullableString(c.PrivateName), formatTime(c.StartDate), formatTime(c.CurrentStreakStart),
		c.LongestStreakDays, nullableString(c.Notes), c.OrderIndex, nullableTime(c.LastRenewalAt),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res, "counter", c.ID)
}

func (s *Store) DeleteCounter(ctx context.Context, id string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	// History rows go with the counter via ON DELETE CASCADE.
	res, err := q.ExecContext(ctx, "DELETE FROM counters WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "counter", id)
}

func (s *Store) GetCounterHistory(ctx context.Context, counterID string) (models.History, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, "SELECT day, maintained FROM counter_history WHERE counter_id = ?", counterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := models.History{}
	for rows.Next() {
		var day string
		var maintained bool
		if err := rows.Scan(&day, &maintained); err != nil {
			return nil, err
		}
		history[day] = maintained
	}
	return history, rows.Err()
}

func (s *Store) SetCounterDay(ctx context.Context, counterID, day string, maintained bool) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	if ok, err := s.exists(ctx, q, "counters", counterID); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("counter %s: %w", counterID, models.ErrNotFound)
	}
	_, err = q.ExecContext(ctx,
		"INSERT OR REPLACE INTO counter_history (counter_id, day, maintained) VALUES (?, ?, ?)",
		counterID, day, maintained,
	)
	return err
}

func (s *Store) DeleteCounterDay(ctx context.Context, counterID, day string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, "DELETE FROM counter_history WHERE counter_id = ? AND day = ?", counterID, day)
	return err
}
