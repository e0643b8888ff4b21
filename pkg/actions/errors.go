package actions

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// ErrNoPrecedingUserMessage is returned by Regenerate when the message
// immediately before the target is missing or is not a user message.
// Nothing has been deleted when this is returned.
var ErrNoPrecedingUserMessage = errors.New("no preceding user message")

// SummaryAppendError reports the half-committed state where a
// summarize action already deleted its source range but storing the
// summary message failed. Summary carries the generated text so the
// caller can retry the append or show the text to the user instead of
// losing it.
type SummaryAppendError struct {
	ConversationID conversation.ConversationID
	Summary        string
	Err            error
}

func (e *SummaryAppendError) Error() string {
	return fmt.Sprintf("history deleted but summary could not be stored in conversation %s: %v", e.ConversationID, e.Err)
}

func (e *SummaryAppendError) Unwrap() error {
	return e.Err
}
