package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

type EventType string

const (
	EventTypeConversationCreated EventType = "conversation-created"
	EventTypeConversationDeleted EventType = "conversation-deleted"
	EventTypeMetadataUpdated     EventType = "metadata-updated"
	EventTypeMessageAppended     EventType = "message-appended"
	EventTypeMessageEdited       EventType = "message-edited"
	EventTypeMessageDeleted      EventType = "message-deleted"
	EventTypeHistoryTruncated    EventType = "history-truncated"
	EventTypePendingGeneration   EventType = "pending-generation"
	EventTypeSummaryCreated      EventType = "summary-created"
)

// TopicChat is the default topic engine events are published under.
const TopicChat = "chat"

// Event is the notification emitted after a store or engine mutation
// has committed. Events describe what happened, they are not commands;
// consumers must tolerate missing optional fields.
type Event struct {
	Type           EventType                   `json:"type"`
	Time           time.Time                   `json:"time"`
	ConversationID conversation.ConversationID `json:"conversation_id,omitempty"`
	MessageID      conversation.MessageID      `json:"message_id,omitempty"`
	Role           conversation.Role           `json:"role,omitempty"`

	// Deleted carries the row count for truncation and summarize events.
	Deleted int64 `json:"deleted,omitempty"`
	// Prompt is the user content awaiting regeneration.
	Prompt string `json:"prompt,omitempty"`
	// SummaryID is the message the summary was stored as.
	SummaryID conversation.MessageID `json:"summary_id,omitempty"`
}

func (e Event) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type))
	if !e.ConversationID.IsZero() {
		ev.Str("conversation_id", e.ConversationID.String())
	}
	if e.MessageID != 0 {
		ev.Int64("message_id", int64(e.MessageID))
	}
	if e.Deleted != 0 {
		ev.Int64("deleted", e.Deleted)
	}
}

func NewConversationCreatedEvent(id conversation.ConversationID) Event {
	return Event{Type: EventTypeConversationCreated, ConversationID: id}
}

func NewConversationDeletedEvent(id conversation.ConversationID) Event {
	return Event{Type: EventTypeConversationDeleted, ConversationID: id}
}

func NewMetadataUpdatedEvent(id conversation.ConversationID) Event {
	return Event{Type: EventTypeMetadataUpdated, ConversationID: id}
}

func NewMessageAppendedEvent(id conversation.ConversationID, msgID conversation.MessageID, role conversation.Role) Event {
	return Event{Type: EventTypeMessageAppended, ConversationID: id, MessageID: msgID, Role: role}
}

func NewMessageEditedEvent(id conversation.ConversationID, msgID conversation.MessageID) Event {
	return Event{Type: EventTypeMessageEdited, ConversationID: id, MessageID: msgID}
}

func NewMessageDeletedEvent(id conversation.ConversationID, msgID conversation.MessageID) Event {
	return Event{Type: EventTypeMessageDeleted, ConversationID: id, MessageID: msgID}
}

func NewHistoryTruncatedEvent(id conversation.ConversationID, deleted int64) Event {
	return Event{Type: EventTypeHistoryTruncated, ConversationID: id, Deleted: deleted}
}

func NewPendingGenerationEvent(id conversation.ConversationID, prompt string) Event {
	return Event{Type: EventTypePendingGeneration, ConversationID: id, Prompt: prompt}
}

func NewSummaryCreatedEvent(id conversation.ConversationID, summaryID conversation.MessageID, deleted int64) Event {
	return Event{Type: EventTypeSummaryCreated, ConversationID: id, SummaryID: summaryID, Deleted: deleted}
}

// NewEventFromJSON decodes an event received off the wire.
func NewEventFromJSON(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "could not decode event")
	}
	if e.Type == "" {
		return Event{}, errors.New("event has no type")
	}
	return e, nil
}
