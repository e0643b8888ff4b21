package actions

import (
	"github.com/huandu/go-clone"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// Session is the explicit call context for engine operations: which
// conversation is active, which model answers it, and the cached file
// context. Callers build one per active conversation and pass it into
// every call; the engine itself keeps no per-conversation state.
type Session struct {
	ConversationID    conversation.ConversationID
	Model             string
	Config            *conversation.GenerationConfig
	SystemInstruction string

	// ContextText is the formatted local file context block, cached by
	// the caller between context rebuilds.
	ContextText string
	// ContextFiles lists the paths included in ContextText, recorded on
	// user messages for auditing.
	ContextFiles []string
}

// FullPrompt assembles the text sent to the collaborator for
// userContent: the system instruction prefix when one is set, then the
// file context block, then the content itself.
func (s *Session) FullPrompt(userContent string) string {
	return conversation.FormatSystemInstruction(s.SystemInstruction) + s.ContextText + userContent
}

func (s *Session) Clone() *Session {
	return clone.Clone(s).(*Session)
}

func (s *Session) generationConfig() *conversation.GenerationConfig {
	if s.Config != nil {
		return s.Config
	}
	return conversation.NewGenerationConfig()
}
