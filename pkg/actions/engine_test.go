package actions

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/events"
	"github.com/go-go-golems/grillo/pkg/generate"
	"github.com/go-go-golems/grillo/pkg/store"
)

type fakeSummarizer struct {
	summary string
	err     error
	ceiling int

	calls      int
	lastModel  string
	lastPrompt string
	lastConfig *conversation.GenerationConfig
	lastTurns  []generate.Turn

	// beforeReply runs inside Generate, before it returns. Tests use it
	// to mutate the store while the collaborator is "busy".
	beforeReply func()
}

func (f *fakeSummarizer) Generate(ctx context.Context, modelID string, prompt string, config *conversation.GenerationConfig, priorTurns []generate.Turn) (string, error) {
	f.calls++
	f.lastModel = modelID
	f.lastPrompt = prompt
	f.lastConfig = config
	f.lastTurns = priorTurns
	if f.beforeReply != nil {
		f.beforeReply()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

func (f *fakeSummarizer) ModelOutputCeiling(ctx context.Context, modelID string) int {
	if f.ceiling > 0 {
		return f.ceiling
	}
	return generate.FallbackModelOutputCeiling
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSession(t *testing.T, s *store.Store) *Session {
	t.Helper()
	id, err := s.CreateConversation(context.Background())
	require.NoError(t, err)
	return &Session{
		ConversationID: id,
		Model:          "gpt-4",
		Config:         conversation.NewGenerationConfig(),
	}
}

func testTime(offsetSeconds int) time.Time {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(offsetSeconds) * time.Second)
}

func appendAt(t *testing.T, s *store.Store, id conversation.ConversationID, role conversation.Role, content string, at time.Time) conversation.MessageID {
	t.Helper()
	msgID, err := s.AppendMessage(context.Background(), id, role, content, store.WithTime(at))
	require.NoError(t, err)
	return msgID
}

func contents(t *testing.T, s *store.Store, id conversation.ConversationID) []string {
	t.Helper()
	messages, err := s.GetMessages(context.Background(), id)
	require.NoError(t, err)
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

type seeded struct {
	q1, a1, q2, a2 conversation.MessageID
}

func seedExchanges(t *testing.T, s *store.Store, id conversation.ConversationID) seeded {
	t.Helper()
	return seeded{
		q1: appendAt(t, s, id, conversation.RoleUser, "q1", testTime(0)),
		a1: appendAt(t, s, id, conversation.RoleAssistant, "a1", testTime(10)),
		q2: appendAt(t, s, id, conversation.RoleUser, "q2", testTime(20)),
		a2: appendAt(t, s, id, conversation.RoleAssistant, "a2", testTime(30)),
	}
}

func TestDeleteRemovesSingleMessage(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	engine := NewEngine(s, &fakeSummarizer{})

	require.NoError(t, engine.Delete(context.Background(), session, ids.a1))
	assert.Equal(t, []string{"q1", "q2", "a2"}, contents(t, s, session.ConversationID))

	err := engine.Delete(context.Background(), session, ids.a1)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"q1", "q2", "a2"}, contents(t, s, session.ConversationID))
}

func TestDeleteScopedToSessionConversation(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	other := newTestSession(t, s)
	foreign := appendAt(t, s, other.ConversationID, conversation.RoleUser, "kept", testTime(0))
	engine := NewEngine(s, &fakeSummarizer{})

	err := engine.Delete(context.Background(), session, foreign)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"kept"}, contents(t, s, other.ConversationID))
}

func TestEditAndResubmitTruncatesHistory(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	engine := NewEngine(s, &fakeSummarizer{})

	pending, err := engine.EditAndResubmit(context.Background(), session, ids.q1, "X")
	require.NoError(t, err)
	assert.Equal(t, session.ConversationID, pending.ConversationID)
	assert.Equal(t, "X", pending.Prompt)
	assert.Equal(t, TriggerEditResubmit, pending.Trigger)

	messages, err := s.GetMessages(context.Background(), session.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, ids.q1, messages[0].ID)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
	assert.Equal(t, "X", messages[0].Content)
	assert.True(t, messages[0].Time.Equal(testTime(0)))
}

func TestEditAndResubmitKeepsEarlierHistory(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	engine := NewEngine(s, &fakeSummarizer{})

	pending, err := engine.EditAndResubmit(context.Background(), session, ids.q2, "rephrased")
	require.NoError(t, err)
	assert.Equal(t, "rephrased", pending.Prompt)
	assert.Equal(t, []string{"q1", "a1", "rephrased"}, contents(t, s, session.ConversationID))
}

func TestEditAndResubmitRejectsAssistantMessage(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	engine := NewEngine(s, &fakeSummarizer{})

	_, err := engine.EditAndResubmit(context.Background(), session, ids.a1, "nope")
	require.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents(t, s, session.ConversationID))
}

func TestEditAndResubmitMissingMessage(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	engine := NewEngine(s, &fakeSummarizer{})

	_, err := engine.EditAndResubmit(context.Background(), session, conversation.MessageID(999), "X")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegenerateQueuesPrecedingPrompt(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	engine := NewEngine(s, &fakeSummarizer{})

	pending, err := engine.Regenerate(context.Background(), session, ids.a2)
	require.NoError(t, err)
	assert.Equal(t, "q2", pending.Prompt)
	assert.Equal(t, TriggerRegenerate, pending.Trigger)
	assert.Equal(t, []string{"q1", "a1", "q2"}, contents(t, s, session.ConversationID))
}

func TestRegenerateDiscardsLaterHistory(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	engine := NewEngine(s, &fakeSummarizer{})

	pending, err := engine.Regenerate(context.Background(), session, ids.a1)
	require.NoError(t, err)
	assert.Equal(t, "q1", pending.Prompt)
	assert.Equal(t, []string{"q1"}, contents(t, s, session.ConversationID))
}

func TestRegenerateWithoutPrecedingUser(t *testing.T) {
	s := newTestStore(t)
	engine := NewEngine(s, &fakeSummarizer{})

	first := newTestSession(t, s)
	opener := appendAt(t, s, first.ConversationID, conversation.RoleAssistant, "hello", testTime(0))
	_, err := engine.Regenerate(context.Background(), first, opener)
	require.ErrorIs(t, err, ErrNoPrecedingUserMessage)
	assert.Equal(t, []string{"hello"}, contents(t, s, first.ConversationID))

	second := newTestSession(t, s)
	appendAt(t, s, second.ConversationID, conversation.RoleUser, "q1", testTime(0))
	appendAt(t, s, second.ConversationID, conversation.RoleAssistant, "a1", testTime(10))
	trailing := appendAt(t, s, second.ConversationID, conversation.RoleAssistant, "a2", testTime(20))
	_, err = engine.Regenerate(context.Background(), second, trailing)
	require.ErrorIs(t, err, ErrNoPrecedingUserMessage)
	assert.Equal(t, []string{"q1", "a1", "a2"}, contents(t, s, second.ConversationID))
}

func TestSummarizeAfterCollapsesTail(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	fake := &fakeSummarizer{summary: "tail summary", ceiling: 8192}
	engine := NewEngine(s, fake)

	result, err := engine.SummarizeAfter(context.Background(), session, ids.a1)
	require.NoError(t, err)
	assert.True(t, result.Summarized)
	assert.EqualValues(t, 2, result.Deleted)
	assert.Equal(t, "tail summary", result.Summary)

	messages, err := s.GetMessages(context.Background(), session.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, []string{"q1", "a1", "tail summary"}, contents(t, s, session.ConversationID))
	last := messages[2]
	assert.Equal(t, result.SummaryID, last.ID)
	assert.Equal(t, conversation.RoleAssistant, last.Role)
	assert.Equal(t, "gpt-4", last.ModelUsed)
	assert.True(t, last.Time.After(testTime(30)))

	expectedPrompt := "You are an expert context summarizer...\n" +
		"Summarize the key points... in the text below. Maintain chronological flow... Be concise...\n" +
		"Note: Relevant local files might have been included as context.\n" +
		"--- Text to Summarize ---\n" +
		"**User** (2024-05-01 12:00:20):\nq2\n" +
		"---\n" +
		"**Assistant** (2024-05-01 12:00:30):\na2\n" +
		"--- End Text to Summarize ---\n" +
		"Provide only the summary below:"
	assert.Equal(t, expectedPrompt, fake.lastPrompt)
	assert.Equal(t, "gpt-4", fake.lastModel)
	assert.Nil(t, fake.lastTurns)

	require.NotNil(t, fake.lastConfig)
	assert.InDelta(t, 0.3, fake.lastConfig.Temperature, 1e-9)
	assert.Equal(t, 1638, fake.lastConfig.MaxOutputTokens)
	assert.InDelta(t, conversation.DefaultTemperature, session.Config.Temperature, 1e-9)
}

func TestSummarizeAfterEmptyRangeIsNoOp(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	fake := &fakeSummarizer{summary: "unused"}
	engine := NewEngine(s, fake)

	result, err := engine.SummarizeAfter(context.Background(), session, ids.a2)
	require.NoError(t, err)
	assert.False(t, result.Summarized)
	assert.Zero(t, result.Deleted)
	assert.Zero(t, fake.calls)
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents(t, s, session.ConversationID))
}

func TestSummarizeBeforeInsertsAheadOfTarget(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	appendAt(t, s, session.ConversationID, conversation.RoleUser, "q1", testTime(0))
	appendAt(t, s, session.ConversationID, conversation.RoleAssistant, "a1", testTime(10))
	target := appendAt(t, s, session.ConversationID, conversation.RoleUser, "q2", testTime(20))
	fake := &fakeSummarizer{summary: "earlier summary"}
	engine := NewEngine(s, fake)

	result, err := engine.SummarizeBefore(context.Background(), session, target)
	require.NoError(t, err)
	assert.True(t, result.Summarized)
	assert.EqualValues(t, 2, result.Deleted)

	messages, err := s.GetMessages(context.Background(), session.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "earlier summary", messages[0].Content)
	assert.Equal(t, conversation.RoleAssistant, messages[0].Role)
	assert.Equal(t, "q2", messages[1].Content)
	assert.True(t, messages[0].Time.Equal(testTime(20).Add(-time.Nanosecond)))
	assert.True(t, messages[0].Time.Before(messages[1].Time))

	assert.True(t, strings.Contains(fake.lastPrompt, "**User** (2024-05-01 12:00:00):\nq1"))
	assert.True(t, strings.Contains(fake.lastPrompt, "**Assistant** (2024-05-01 12:00:10):\na1"))
}

func TestSummarizeCollaboratorFailureDeletesNothing(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	fake := &fakeSummarizer{err: &generate.CollaboratorError{Op: "generate", Model: "gpt-4", Err: errors.New("boom")}}
	engine := NewEngine(s, fake)

	_, err := engine.SummarizeAfter(context.Background(), session, ids.q1)
	var collabErr *generate.CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents(t, s, session.ConversationID))
}

func TestSummarizeAppendFailureCarriesSummary(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)
	fake := &fakeSummarizer{summary: "stranded summary"}
	fake.beforeReply = func() {
		require.NoError(t, s.DeleteConversation(context.Background(), session.ConversationID))
	}
	engine := NewEngine(s, fake)

	_, err := engine.SummarizeAfter(context.Background(), session, ids.q1)
	var appendErr *SummaryAppendError
	require.ErrorAs(t, err, &appendErr)
	assert.Equal(t, session.ConversationID, appendErr.ConversationID)
	assert.Equal(t, "stranded summary", appendErr.Summary)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func receiveEvent(t *testing.T, messages <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-messages:
		msg.Ack()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEditAndResubmitPublishesEvents(t *testing.T) {
	s := newTestStore(t)
	session := newTestSession(t, s)
	ids := seedExchanges(t, s, session.ConversationID)

	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	received, err := pubsub.Subscribe(context.Background(), events.TopicChat)
	require.NoError(t, err)

	manager := events.NewPublisherManager()
	manager.SubscribePublisher(events.TopicChat, pubsub)
	engine := NewEngine(s, &fakeSummarizer{}, WithPublisherManager(manager))

	_, err = engine.EditAndResubmit(context.Background(), session, ids.q2, "edited")
	require.NoError(t, err)

	var got []events.Event
	for i := 0; i < 3; i++ {
		msg := receiveEvent(t, received)
		e, err := events.NewEventFromJSON(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, session.ConversationID, e.ConversationID)
		got = append(got, e)
	}
	assert.Equal(t, events.EventTypeMessageEdited, got[0].Type)
	assert.Equal(t, ids.q2, got[0].MessageID)
	assert.Equal(t, events.EventTypeHistoryTruncated, got[1].Type)
	assert.EqualValues(t, 1, got[1].Deleted)
	assert.Equal(t, events.EventTypePendingGeneration, got[2].Type)
	assert.Equal(t, "edited", got[2].Prompt)
}
