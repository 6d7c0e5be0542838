package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/julianstephens/keel/internal/models"
)

func (s *Store) GetSetting(ctx context.Context, key string) (json.RawMessage, bool, error) {
	q, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var value string
	err = q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(value), true, nil
}

func (s *Store) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)", key, string(value))
	return err
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	q, err := s.conn()
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

func (s *Store) ListSettings(ctx context.Context) ([]models.SettingEntry, error) {
	q, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SettingEntry
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out = append(out, models.SettingEntry{Key: key, Value: json.RawMessage(value)})
	}
	return out, rows.Err()
}
