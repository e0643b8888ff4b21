package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SaveInstruction upserts a named reusable system prompt.
func (s *Store) SaveInstruction(ctx context.Context, name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Wrap(ErrInvalidInput, "instruction name is empty")
	}
	if strings.TrimSpace(text) == "" {
		return errors.Wrap(ErrInvalidInput, "instruction text is empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instructions (name, instruction_text, timestamp)
		 VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   instruction_text = excluded.instruction_text,
		   timestamp = excluded.timestamp`,
		name, text, toNanos(now()),
	)
	if err != nil {
		return errors.Wrap(err, "could not save instruction")
	}

	log.Debug().Str("name", name).Msg("saved instruction")
	return nil
}

// GetInstruction returns the text of a named instruction.
func (s *Store) GetInstruction(ctx context.Context, name string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT instruction_text FROM instructions WHERE name = ?`, name,
	).Scan(&text)
	if err == sql.ErrNoRows {
		return "", errors.Wrapf(ErrNotFound, "instruction %q", name)
	}
	if err != nil {
		return "", errors.Wrap(err, "could not load instruction")
	}
	return text, nil
}

// ListInstructionNames returns all instruction names,
// case-insensitively sorted.
func (s *Store) ListInstructionNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM instructions ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, errors.Wrap(err, "could not list instructions")
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "could not scan instruction name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "could not iterate instructions")
	}
	return names, nil
}

// DeleteInstruction removes a named instruction.
func (s *Store) DeleteInstruction(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM instructions WHERE name = ?`, name)
	if err != nil {
		return errors.Wrap(err, "could not delete instruction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "could not read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "instruction %q", name)
	}

	log.Debug().Str("name", name).Msg("deleted instruction")
	return nil
}
