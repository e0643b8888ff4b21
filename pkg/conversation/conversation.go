package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ConversationID is the opaque identifier of a conversation. It is a
// canonical UUID string so that it can be passed around and persisted
// without further encoding.
type ConversationID string

func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

func (id ConversationID) String() string {
	return string(id)
}

func (id ConversationID) IsZero() bool {
	return id == ""
}

// ParseConversationID validates that s is a well-formed conversation id.
func ParseConversationID(s string) (ConversationID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", errors.Wrapf(err, "invalid conversation id %q", s)
	}
	return ConversationID(s), nil
}

// MessageID is assigned by the store on insert and increases
// monotonically within a database.
type MessageID int64

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Capitalized returns the role with its first letter upper-cased, the
// form used in rendered transcripts and summary blocks.
func (r Role) Capitalized() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Message is a single persisted turn within a conversation. Messages
// are totally ordered by Time within their conversation.
type Message struct {
	ID             MessageID      `json:"id"`
	ConversationID ConversationID `json:"conversation_id"`
	Time           time.Time      `json:"timestamp"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`

	// Optional audit fields, populated for messages that went through
	// a generation round-trip.
	ModelUsed    string   `json:"model_used,omitempty"`
	ContextFiles []string `json:"context_files,omitempty"`
	FullPrompt   string   `json:"full_prompt_sent,omitempty"`
}
