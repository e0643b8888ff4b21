package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SettingAPIKey is the well-known settings key under which the LLM API
// credential is persisted.
const SettingAPIKey = "api_key"

// SetSetting stores an opaque key/value pair.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.Wrap(ErrInvalidInput, "setting key is empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`,
		key, value)
	if err != nil {
		return errors.Wrap(err, "could not save setting")
	}

	log.Debug().Str("key", key).Msg("saved setting")
	return nil
}

// GetSetting returns the value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errors.Wrapf(ErrNotFound, "setting %q", key)
	}
	if err != nil {
		return "", errors.Wrap(err, "could not load setting")
	}
	return value, nil
}

// DeleteSetting removes a key/value pair.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return errors.Wrap(err, "could not delete setting")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "could not read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "setting %q", key)
	}
	return nil
}
