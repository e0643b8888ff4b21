package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// DefaultRecentLimit caps the recency listing when the caller does not
// ask for a specific limit.
const DefaultRecentLimit = 15

// CreateConversation inserts a fresh conversation with no title and
// both timestamps set to now.
func (s *Store) CreateConversation(ctx context.Context) (conversation.ConversationID, error) {
	id := conversation.NewConversationID()
	ns := toNanos(now())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, start_timestamp, last_update_timestamp)
		 VALUES (?, ?, ?)`,
		id.String(), ns, ns,
	)
	if err != nil {
		return "", errors.Wrap(err, "could not create conversation")
	}

	log.Debug().Str("conversation_id", id.String()).Msg("created conversation")
	return id, nil
}

// GetConversationMetadata loads the full metadata record. A malformed
// JSON field degrades to its empty default instead of failing the
// whole read.
func (s *Store) GetConversationMetadata(ctx context.Context, id conversation.ConversationID) (*conversation.Metadata, error) {
	var (
		title          sql.NullString
		startNs        int64
		lastUpdateNs   int64
		configJSON     sql.NullString
		instruction    sql.NullString
		pathsJSON      sql.NullString
		exclFilesJSON  sql.NullString
		conversationID string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, title, start_timestamp, last_update_timestamp,
		        generation_config_json, system_instruction, added_paths_json, excluded_files_json
		 FROM conversations WHERE conversation_id = ?`, id.String(),
	).Scan(&conversationID, &title, &startNs, &lastUpdateNs,
		&configJSON, &instruction, &pathsJSON, &exclFilesJSON)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "conversation %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not load conversation metadata")
	}

	meta := &conversation.Metadata{
		ID:                conversation.ConversationID(conversationID),
		Title:             title.String,
		StartedAt:         fromNanos(startNs),
		LastUpdateAt:      fromNanos(lastUpdateNs),
		SystemInstruction: instruction.String,
		IncludedPaths:     decodePathSet(id, "added_paths_json", pathsJSON),
		ExcludedFiles:     decodePathSet(id, "excluded_files_json", exclFilesJSON),
	}

	if configJSON.Valid && configJSON.String != "" {
		cfg := conversation.NewGenerationConfig()
		if err := json.Unmarshal([]byte(configJSON.String), cfg); err != nil {
			log.Warn().
				Str("conversation_id", id.String()).
				Err(err).
				Msg("could not decode generation config, dropping field")
		} else {
			meta.GenerationConfig = cfg
		}
	}

	return meta, nil
}

func decodePathSet(id conversation.ConversationID, field string, raw sql.NullString) conversation.PathSet {
	if !raw.Valid || raw.String == "" {
		return conversation.NewPathSet()
	}
	var set conversation.PathSet
	if err := json.Unmarshal([]byte(raw.String), &set); err != nil {
		log.Warn().
			Str("conversation_id", id.String()).
			Str("field", field).
			Err(err).
			Msg("could not decode path set, dropping field")
		return conversation.NewPathSet()
	}
	return set
}

// UpdateConversationMetadata applies a partial metadata update. An
// update with no fields set is a no-op success; any set field also
// advances the last-update timestamp.
func (s *Store) UpdateConversationMetadata(ctx context.Context, id conversation.ConversationID, update conversation.MetadataUpdate) error {
	if update.IsZero() {
		log.Trace().Str("conversation_id", id.String()).Msg("empty metadata update, nothing to do")
		return nil
	}

	var (
		sets []string
		args []interface{}
	)

	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.GenerationConfig != nil {
		b, err := json.Marshal(update.GenerationConfig)
		if err != nil {
			return errors.Wrap(err, "could not encode generation config")
		}
		sets = append(sets, "generation_config_json = ?")
		args = append(args, string(b))
	}
	if update.SystemInstruction != nil {
		sets = append(sets, "system_instruction = ?")
		args = append(args, *update.SystemInstruction)
	}
	if update.IncludedPaths != nil {
		b, err := json.Marshal(*update.IncludedPaths)
		if err != nil {
			return errors.Wrap(err, "could not encode included paths")
		}
		sets = append(sets, "added_paths_json = ?")
		args = append(args, string(b))
	}
	if update.ExcludedFiles != nil {
		b, err := json.Marshal(*update.ExcludedFiles)
		if err != nil {
			return errors.Wrap(err, "could not encode excluded files")
		}
		sets = append(sets, "excluded_files_json = ?")
		args = append(args, string(b))
	}

	sets = append(sets, "last_update_timestamp = ?")
	args = append(args, toNanos(now()))
	args = append(args, id.String())

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET `+strings.Join(sets, ", ")+` WHERE conversation_id = ?`,
		args...,
	)
	if err != nil {
		return errors.Wrap(err, "could not update conversation metadata")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "could not read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "conversation %s", id)
	}

	log.Debug().
		Str("conversation_id", id.String()).
		Int("fields", len(sets)-1).
		Msg("updated conversation metadata")

	return nil
}

// ListRecentConversations returns up to limit conversations ordered by
// last update, newest first. Conversations without a title get the
// placeholder.
func (s *Store) ListRecentConversations(ctx context.Context, limit int) ([]conversation.Summary, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, title, last_update_timestamp
		 FROM conversations
		 ORDER BY last_update_timestamp DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not list conversations")
	}
	defer func() { _ = rows.Close() }()

	var summaries []conversation.Summary
	for rows.Next() {
		var (
			id    string
			title sql.NullString
			ns    int64
		)
		if err := rows.Scan(&id, &title, &ns); err != nil {
			return nil, errors.Wrap(err, "could not scan conversation summary")
		}
		displayTitle := title.String
		if displayTitle == "" {
			displayTitle = conversation.PlaceholderTitle
		}
		summaries = append(summaries, conversation.Summary{
			ID:           conversation.ConversationID(id),
			Title:        displayTitle,
			LastUpdateAt: fromNanos(ns),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "could not iterate conversations")
	}
	return summaries, nil
}

// DeleteConversation removes a conversation and, through the foreign
// key cascade, every message it owns.
func (s *Store) DeleteConversation(ctx context.Context, id conversation.ConversationID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE conversation_id = ?`, id.String())
	if err != nil {
		return errors.Wrap(err, "could not delete conversation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "could not read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "conversation %s", id)
	}

	log.Debug().Str("conversation_id", id.String()).Msg("deleted conversation")
	return nil
}
