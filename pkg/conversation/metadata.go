package conversation

import (
	"strings"
	"time"
)

// PlaceholderTitle is shown for conversations whose title was never
// set, typically because no user message has been saved yet.
const PlaceholderTitle = "New Chat..."

const TitleMaxLength = 50

// Metadata is the full per-conversation record: display title,
// lifecycle timestamps, and the chat-level settings that shape every
// prompt built for the conversation.
type Metadata struct {
	ID                ConversationID    `json:"conversation_id"`
	Title             string            `json:"title,omitempty"`
	StartedAt         time.Time         `json:"start_timestamp"`
	LastUpdateAt      time.Time         `json:"last_update_timestamp"`
	GenerationConfig  *GenerationConfig `json:"generation_config,omitempty"`
	SystemInstruction string            `json:"system_instruction,omitempty"`
	IncludedPaths     PathSet           `json:"included_paths,omitempty"`
	ExcludedFiles     PathSet           `json:"excluded_files,omitempty"`
}

// Summary is a single row of the recency listing used by sidebars and
// list commands.
type Summary struct {
	ID           ConversationID `json:"conversation_id"`
	Title        string         `json:"title"`
	LastUpdateAt time.Time      `json:"last_update_timestamp"`
}

// MetadataUpdate is a partial update of conversation metadata. Nil
// fields are left untouched; any non-nil field advances the
// conversation's last-update timestamp.
type MetadataUpdate struct {
	Title             *string
	GenerationConfig  *GenerationConfig
	SystemInstruction *string
	IncludedPaths     *PathSet
	ExcludedFiles     *PathSet
}

func (u MetadataUpdate) IsZero() bool {
	return u.Title == nil &&
		u.GenerationConfig == nil &&
		u.SystemInstruction == nil &&
		u.IncludedPaths == nil &&
		u.ExcludedFiles == nil
}

// DeriveTitle computes a conversation title from the first user
// message: its leading characters, or a dated fallback when the
// message is blank.
func DeriveTitle(firstUserContent string, now time.Time) string {
	title := strings.TrimSpace(firstUserContent)
	if runes := []rune(title); len(runes) > TitleMaxLength {
		title = strings.TrimSpace(string(runes[:TitleMaxLength]))
	}
	if title == "" {
		return "Chat " + now.Format("2006-01-02 15:04")
	}
	return title
}
