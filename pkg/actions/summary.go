package actions

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

const summaryTimeLayout = "2006-01-02 15:04:05"

const summaryPreamble = `You are an expert context summarizer...
Summarize the key points... in the text below. Maintain chronological flow... Be concise...
Note: Relevant local files might have been included as context.
--- Text to Summarize ---
`

const summaryEpilogue = `
--- End Text to Summarize ---
Provide only the summary below:`

// summaryPrompt renders the messages into the prompt sent to the
// summarizer. Each turn becomes a bold role heading with its timestamp,
// turns separated by a --- rule.
func summaryPrompt(messages []*conversation.Message) string {
	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		blocks = append(blocks, fmt.Sprintf("**%s** (%s):\n%s",
			m.Role.Capitalized(),
			m.Time.UTC().Format(summaryTimeLayout),
			m.Content,
		))
	}
	return summaryPreamble + strings.Join(blocks, "\n---\n") + summaryEpilogue
}
