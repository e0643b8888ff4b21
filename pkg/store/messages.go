package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// AppendOption tweaks a single message append.
type AppendOption func(*appendSettings)

type appendSettings struct {
	timestamp    *time.Time
	modelUsed    string
	contextFiles []string
	fullPrompt   string
}

// WithTime overrides the message's own timestamp. The conversation's
// recency marker still advances to the current time, never to the
// override.
func WithTime(t time.Time) AppendOption {
	return func(s *appendSettings) {
		t := t.UTC()
		s.timestamp = &t
	}
}

func WithModelUsed(model string) AppendOption {
	return func(s *appendSettings) {
		s.modelUsed = model
	}
}

func WithContextFiles(files []string) AppendOption {
	return func(s *appendSettings) {
		s.contextFiles = files
	}
}

func WithFullPrompt(prompt string) AppendOption {
	return func(s *appendSettings) {
		s.fullPrompt = prompt
	}
}

// AppendMessage inserts a message into a conversation and advances the
// conversation's last-update timestamp. Returns ErrNotFound when the
// conversation does not exist.
func (s *Store) AppendMessage(
	ctx context.Context,
	id conversation.ConversationID,
	role conversation.Role,
	content string,
	options ...AppendOption,
) (conversation.MessageID, error) {
	if !role.Valid() {
		return 0, errors.Wrapf(ErrInvalidInput, "unknown role %q", role)
	}

	settings := &appendSettings{}
	for _, o := range options {
		o(settings)
	}

	nowTs := now()
	msgTs := nowTs
	if settings.timestamp != nil {
		msgTs = *settings.timestamp
	}

	var contextFilesJSON sql.NullString
	if len(settings.contextFiles) > 0 {
		b, err := json.Marshal(settings.contextFiles)
		if err != nil {
			return 0, errors.Wrap(err, "could not encode context files")
		}
		contextFilesJSON = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "could not begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM conversations WHERE conversation_id = ?`, id.String(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return 0, errors.Wrapf(ErrNotFound, "conversation %s", id)
	}
	if err != nil {
		return 0, errors.Wrap(err, "could not check conversation")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (conversation_id, timestamp, role, content, model_used, context_files_json, full_prompt_sent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), toNanos(msgTs), string(role), content,
		nullIfEmpty(settings.modelUsed), contextFilesJSON, nullIfEmpty(settings.fullPrompt),
	)
	if err != nil {
		return 0, errors.Wrap(err, "could not insert message")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_update_timestamp = ? WHERE conversation_id = ?`,
		toNanos(nowTs), id.String(),
	); err != nil {
		return 0, errors.Wrap(err, "could not update conversation timestamp")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "could not commit message")
	}

	messageID, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "could not read inserted message id")
	}

	log.Trace().
		Str("conversation_id", id.String()).
		Int64("message_id", messageID).
		Str("role", string(role)).
		Msg("appended message")

	return conversation.MessageID(messageID), nil
}

const messageColumns = `message_id, conversation_id, timestamp, role, content, model_used, context_files_json, full_prompt_sent`

// GetMessage fetches a single message by id.
func (s *Store) GetMessage(ctx context.Context, id conversation.MessageID) (*conversation.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE message_id = ?`, int64(id))
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "message %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load message")
	}
	return msg, nil
}

// GetMessages returns every message of the conversation ascending by
// timestamp.
func (s *Store) GetMessages(ctx context.Context, id conversation.ConversationID) ([]*conversation.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE conversation_id = ?
		 ORDER BY timestamp ASC, message_id ASC`,
		id.String())
}

// GetMessagesAfter returns messages with timestamp strictly greater
// than t, ascending.
func (s *Store) GetMessagesAfter(ctx context.Context, id conversation.ConversationID, t time.Time) ([]*conversation.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE conversation_id = ? AND timestamp > ?
		 ORDER BY timestamp ASC, message_id ASC`,
		id.String(), toNanos(t))
}

// GetMessagesBefore returns messages with timestamp strictly less
// than t, ascending.
func (s *Store) GetMessagesBefore(ctx context.Context, id conversation.ConversationID, t time.Time) ([]*conversation.Message, error) {
	return s.queryMessages(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE conversation_id = ? AND timestamp < ?
		 ORDER BY timestamp ASC, message_id ASC`,
		id.String(), toNanos(t))
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*conversation.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "could not query messages")
	}
	defer func() { _ = rows.Close() }()

	var messages []*conversation.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan message")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "could not iterate messages")
	}
	return messages, nil
}

// DeleteMessage removes a single message. It deliberately leaves the
// conversation's recency marker alone.
func (s *Store) DeleteMessage(ctx context.Context, id conversation.MessageID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE message_id = ?`, int64(id))
	if err != nil {
		return errors.Wrap(err, "could not delete message")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "could not read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "message %d", id)
	}

	log.Debug().Int64("message_id", int64(id)).Msg("deleted message")
	return nil
}

// DeleteMessagesAfter removes every message of the conversation with
// timestamp strictly greater than t and returns the number deleted.
// Deleting an empty range is a success with count 0; the recency
// marker only advances when something was actually removed.
func (s *Store) DeleteMessagesAfter(ctx context.Context, id conversation.ConversationID, t time.Time) (int64, error) {
	return s.deleteMessageRange(ctx, id,
		`DELETE FROM chat_messages WHERE conversation_id = ? AND timestamp > ?`, t)
}

// DeleteMessagesBefore is the strictly-less-than twin of
// DeleteMessagesAfter.
func (s *Store) DeleteMessagesBefore(ctx context.Context, id conversation.ConversationID, t time.Time) (int64, error) {
	return s.deleteMessageRange(ctx, id,
		`DELETE FROM chat_messages WHERE conversation_id = ? AND timestamp < ?`, t)
}

func (s *Store) deleteMessageRange(ctx context.Context, id conversation.ConversationID, query string, t time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "could not begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, id.String(), toNanos(t))
	if err != nil {
		return 0, errors.Wrap(err, "could not delete message range")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "could not read affected rows")
	}

	if n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_update_timestamp = ? WHERE conversation_id = ?`,
			toNanos(now()), id.String(),
		); err != nil {
			return 0, errors.Wrap(err, "could not update conversation timestamp")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "could not commit range delete")
	}

	log.Debug().
		Str("conversation_id", id.String()).
		Int64("deleted", n).
		Msg("deleted message range")

	return n, nil
}

// UpdateMessageContent replaces a message's content and advances the
// owning conversation's recency marker.
func (s *Store) UpdateMessageContent(ctx context.Context, id conversation.MessageID, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var conversationID string
	err = tx.QueryRowContext(ctx,
		`SELECT conversation_id FROM chat_messages WHERE message_id = ?`, int64(id),
	).Scan(&conversationID)
	if err == sql.ErrNoRows {
		return errors.Wrapf(ErrNotFound, "message %d", id)
	}
	if err != nil {
		return errors.Wrap(err, "could not load message")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_messages SET content = ? WHERE message_id = ?`,
		content, int64(id),
	); err != nil {
		return errors.Wrap(err, "could not update message content")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_update_timestamp = ? WHERE conversation_id = ?`,
		toNanos(now()), conversationID,
	); err != nil {
		return errors.Wrap(err, "could not update conversation timestamp")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit content update")
	}

	log.Debug().Int64("message_id", int64(id)).Msg("updated message content")
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*conversation.Message, error) {
	var (
		messageID        int64
		conversationID   string
		ns               int64
		role             string
		content          string
		modelUsed        sql.NullString
		contextFilesJSON sql.NullString
		fullPrompt       sql.NullString
	)
	if err := row.Scan(&messageID, &conversationID, &ns, &role, &content,
		&modelUsed, &contextFilesJSON, &fullPrompt); err != nil {
		return nil, err
	}

	msg := &conversation.Message{
		ID:             conversation.MessageID(messageID),
		ConversationID: conversation.ConversationID(conversationID),
		Time:           fromNanos(ns),
		Role:           conversation.Role(role),
		Content:        content,
		ModelUsed:      modelUsed.String,
		FullPrompt:     fullPrompt.String,
	}

	if contextFilesJSON.Valid && contextFilesJSON.String != "" {
		var files []string
		if err := json.Unmarshal([]byte(contextFilesJSON.String), &files); err != nil {
			// A corrupt audit field should not make the message
			// unreadable.
			log.Warn().
				Int64("message_id", messageID).
				Err(err).
				Msg("could not decode context files, dropping field")
		} else {
			msg.ContextFiles = files
		}
	}

	return msg, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
