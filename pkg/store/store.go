package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when the addressed conversation, message,
// instruction or setting does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned for arguments that can never be stored,
// such as an empty instruction name.
var ErrInvalidInput = errors.New("invalid input")

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS instructions (
		name TEXT PRIMARY KEY,
		instruction_text TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		title TEXT,
		start_timestamp INTEGER NOT NULL,
		last_update_timestamp INTEGER NOT NULL,
		generation_config_json TEXT,
		system_instruction TEXT,
		added_paths_json TEXT,
		excluded_files_json TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		message_id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		model_used TEXT,
		context_files_json TEXT,
		full_prompt_sent TEXT,
		FOREIGN KEY (conversation_id) REFERENCES conversations (conversation_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_convo_ts
		ON chat_messages (conversation_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Store is the durable home of conversations, messages, instructions
// and settings. It is designed for a single logical writer; reads may
// run concurrently but callers must not interleave writes to the same
// conversation.
type Store struct {
	db *sql.DB
}

// DSNForFile builds the sqlite DSN used for on-disk databases: WAL
// journaling, a busy timeout, and foreign keys enforced so that
// conversation deletes cascade to their messages.
func DSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("store: empty database path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

// New opens (creating if necessary) the database at path.
func New(path string) (*Store, error) {
	dsn, err := DSNForFile(path)
	if err != nil {
		return nil, err
	}
	return Open(dsn)
}

// Open connects to the given sqlite DSN and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}
	// In-memory databases lose their schema when a second connection
	// is opened, so pin the pool to one connection.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("dsn", dsn).Msg("opened chat store")
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return errors.Wrap(err, "could not enable foreign keys")
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return errors.Wrap(err, "could not migrate database")
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// now is the single point where the store reads the clock. Timestamps
// are stored as UTC nanoseconds so that range comparisons and the
// summarize-before decrement are plain integer arithmetic.
func now() time.Time {
	return time.Now().UTC()
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
