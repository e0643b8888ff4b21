// Package actions implements the message-level actions a conversation
// supports: delete, edit and resubmit, regenerate, and history
// summarization. Every action validates against the store before it
// mutates anything and publishes typed events for what it changed.
package actions

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/events"
	"github.com/go-go-golems/grillo/pkg/generate"
	"github.com/go-go-golems/grillo/pkg/store"
)

// Trigger labels on pending generations, recording which action queued
// the request.
const (
	TriggerNewMessage   = "new_message"
	TriggerEditResubmit = "edit_resubmit"
	TriggerRegenerate   = "regenerate"
)

// Summarizer is the slice of the collaborator contract the engine
// needs. generate.Client satisfies it.
type Summarizer interface {
	Generate(ctx context.Context, modelID string, prompt string, config *conversation.GenerationConfig, priorTurns []generate.Turn) (string, error)
	ModelOutputCeiling(ctx context.Context, modelID string) int
}

// PendingGeneration is a queued generation request produced by an
// action. The engine never performs the round-trip itself; the caller
// assembles the full prompt from its session and drives the
// collaborator.
type PendingGeneration struct {
	ConversationID conversation.ConversationID `json:"convo_id"`
	Prompt         string                      `json:"prompt"`
	Trigger        string                      `json:"trigger"`
}

// SummaryResult reports what a summarize action did. Summarized is
// false when the requested range was empty and nothing changed.
type SummaryResult struct {
	Summarized bool
	Deleted    int64
	SummaryID  conversation.MessageID
	Summary    string
}

// Engine executes conversation actions against a store and a
// summarization collaborator.
type Engine struct {
	store      *store.Store
	summarizer Summarizer
	publisher  *events.PublisherManager
}

type EngineOption func(*Engine)

// WithPublisherManager wires an event sink into the engine. Without
// one the engine stays silent.
func WithPublisherManager(pm *events.PublisherManager) EngineOption {
	return func(e *Engine) {
		e.publisher = pm
	}
}

func NewEngine(s *store.Store, summarizer Summarizer, options ...EngineOption) *Engine {
	e := &Engine{
		store:      s,
		summarizer: summarizer,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

func (e *Engine) publish(ev events.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishBlind(ev)
}

// sessionMessage fetches a message and checks it belongs to the
// session's conversation. Messages from other conversations are not
// visible through a session and report ErrNotFound.
func (e *Engine) sessionMessage(ctx context.Context, session *Session, id conversation.MessageID) (*conversation.Message, error) {
	msg, err := e.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != session.ConversationID {
		return nil, errors.Wrapf(store.ErrNotFound, "message %d not in conversation %s", id, session.ConversationID)
	}
	return msg, nil
}

// Delete removes a single message. A missing message reports
// ErrNotFound and nothing else changes.
func (e *Engine) Delete(ctx context.Context, session *Session, id conversation.MessageID) error {
	if _, err := e.sessionMessage(ctx, session, id); err != nil {
		return err
	}
	if err := e.store.DeleteMessage(ctx, id); err != nil {
		return err
	}

	log.Debug().
		Str("conversation_id", session.ConversationID.String()).
		Int64("message_id", int64(id)).
		Msg("deleted message")

	e.publish(events.NewMessageDeletedEvent(session.ConversationID, id))
	return nil
}

// EditAndResubmit replaces a user message's content, drops everything
// after it, and queues the edited content for regeneration. When the
// truncation fails the content edit has already been committed; the
// returned error reports that without rolling the edit back.
func (e *Engine) EditAndResubmit(ctx context.Context, session *Session, id conversation.MessageID, newContent string) (*PendingGeneration, error) {
	msg, err := e.sessionMessage(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if msg.Role != conversation.RoleUser {
		return nil, errors.Wrapf(store.ErrInvalidInput, "cannot edit and resubmit %s message %d", msg.Role, id)
	}

	if err := e.store.UpdateMessageContent(ctx, id, newContent); err != nil {
		return nil, err
	}
	e.publish(events.NewMessageEditedEvent(session.ConversationID, id))

	deleted, err := e.store.DeleteMessagesAfter(ctx, session.ConversationID, msg.Time)
	if err != nil {
		return nil, errors.Wrap(err, "edit saved but subsequent history could not be removed")
	}
	if deleted > 0 {
		e.publish(events.NewHistoryTruncatedEvent(session.ConversationID, deleted))
	}

	log.Debug().
		Str("conversation_id", session.ConversationID.String()).
		Int64("message_id", int64(id)).
		Int64("deleted", deleted).
		Msg("edited message and truncated history")

	e.publish(events.NewPendingGenerationEvent(session.ConversationID, newContent))
	return &PendingGeneration{
		ConversationID: session.ConversationID,
		Prompt:         newContent,
		Trigger:        TriggerEditResubmit,
	}, nil
}

// Regenerate discards an assistant response and everything after it,
// then queues the user prompt that produced it for another round-trip.
// The message immediately preceding the target must be a user message;
// otherwise ErrNoPrecedingUserMessage is returned and nothing is
// deleted.
func (e *Engine) Regenerate(ctx context.Context, session *Session, id conversation.MessageID) (*PendingGeneration, error) {
	if _, err := e.sessionMessage(ctx, session, id); err != nil {
		return nil, err
	}

	messages, err := e.store.GetMessages(ctx, session.ConversationID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, m := range messages {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.Wrapf(store.ErrNotFound, "message %d", id)
	}
	if idx == 0 || messages[idx-1].Role != conversation.RoleUser {
		return nil, errors.Wrapf(ErrNoPrecedingUserMessage, "cannot regenerate message %d", id)
	}
	preceding := messages[idx-1]

	deleted, err := e.store.DeleteMessagesAfter(ctx, session.ConversationID, preceding.Time)
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		e.publish(events.NewHistoryTruncatedEvent(session.ConversationID, deleted))
	}

	log.Debug().
		Str("conversation_id", session.ConversationID.String()).
		Int64("message_id", int64(id)).
		Int64("preceding_id", int64(preceding.ID)).
		Int64("deleted", deleted).
		Msg("truncated history for regeneration")

	e.publish(events.NewPendingGenerationEvent(session.ConversationID, preceding.Content))
	return &PendingGeneration{
		ConversationID: session.ConversationID,
		Prompt:         preceding.Content,
		Trigger:        TriggerRegenerate,
	}, nil
}

// SummarizeAfter collapses every message strictly after the target into
// a single assistant summary appended at the current time. An empty
// range is a no-op success. When the summarizer call fails nothing has
// been deleted; when storing the summary fails after the deletion, the
// error is a *SummaryAppendError carrying the summary text.
func (e *Engine) SummarizeAfter(ctx context.Context, session *Session, id conversation.MessageID) (*SummaryResult, error) {
	return e.summarize(ctx, session, id, false)
}

// SummarizeBefore collapses every message strictly before the target
// into a summary that sorts immediately before it. Same no-op and
// partial-failure shape as SummarizeAfter.
func (e *Engine) SummarizeBefore(ctx context.Context, session *Session, id conversation.MessageID) (*SummaryResult, error) {
	return e.summarize(ctx, session, id, true)
}

func (e *Engine) summarize(ctx context.Context, session *Session, id conversation.MessageID, before bool) (*SummaryResult, error) {
	target, err := e.sessionMessage(ctx, session, id)
	if err != nil {
		return nil, err
	}

	var span []*conversation.Message
	if before {
		span, err = e.store.GetMessagesBefore(ctx, session.ConversationID, target.Time)
	} else {
		span, err = e.store.GetMessagesAfter(ctx, session.ConversationID, target.Time)
	}
	if err != nil {
		return nil, err
	}
	if len(span) == 0 {
		log.Debug().
			Str("conversation_id", session.ConversationID.String()).
			Int64("message_id", int64(id)).
			Bool("before", before).
			Msg("no messages to summarize")
		return &SummaryResult{}, nil
	}

	ceiling := e.summarizer.ModelOutputCeiling(ctx, session.Model)
	config := session.generationConfig().ForSummary(ceiling)
	summary, err := e.summarizer.Generate(ctx, session.Model, summaryPrompt(span), config, nil)
	if err != nil {
		return nil, err
	}

	var deleted int64
	if before {
		deleted, err = e.store.DeleteMessagesBefore(ctx, session.ConversationID, target.Time)
	} else {
		deleted, err = e.store.DeleteMessagesAfter(ctx, session.ConversationID, target.Time)
	}
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		e.publish(events.NewHistoryTruncatedEvent(session.ConversationID, deleted))
	}

	appendOptions := []store.AppendOption{store.WithModelUsed(session.Model)}
	if before {
		// The summary has to sort immediately before the message whose
		// prior history it replaces, so its timestamp is the target's
		// minus the smallest representable step.
		appendOptions = append(appendOptions, store.WithTime(target.Time.Add(-time.Nanosecond)))
	}
	summaryID, err := e.store.AppendMessage(ctx, session.ConversationID, conversation.RoleAssistant, summary, appendOptions...)
	if err != nil {
		return nil, &SummaryAppendError{
			ConversationID: session.ConversationID,
			Summary:        summary,
			Err:            err,
		}
	}

	log.Debug().
		Str("conversation_id", session.ConversationID.String()).
		Int64("message_id", int64(id)).
		Int64("summary_id", int64(summaryID)).
		Int64("deleted", deleted).
		Bool("before", before).
		Msg("summarized history")

	e.publish(events.NewSummaryCreatedEvent(session.ConversationID, summaryID, deleted))
	return &SummaryResult{
		Summarized: true,
		Deleted:    deleted,
		SummaryID:  summaryID,
		Summary:    summary,
	}, nil
}
