// Package generate defines the external LLM collaborator contract and
// client adapters for it. The core stores and the action engine only
// ever see the Client interface.
package generate

import (
	"context"
	"fmt"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// FallbackModelOutputCeiling is used when a model's output token limit
// cannot be looked up.
const FallbackModelOutputCeiling = 65536

// MaxHistoryPairs bounds how many user/assistant exchanges are sent as
// prior turns with a generation request.
const MaxHistoryPairs = 15

// Turn is one prior exchange half passed to the collaborator.
type Turn struct {
	Role    conversation.Role `json:"role"`
	Content string            `json:"content"`
}

// Client is the narrow contract toward the vendor LLM API. Generate
// and CountTokens report failures as *CollaboratorError; retries are
// the caller's policy, never the client's.
type Client interface {
	Generate(ctx context.Context, modelID string, prompt string, config *conversation.GenerationConfig, priorTurns []Turn) (string, error)
	CountTokens(ctx context.Context, modelID string, text string) (int, error)
	// ModelOutputCeiling never fails; unknown models report
	// FallbackModelOutputCeiling.
	ModelOutputCeiling(ctx context.Context, modelID string) int
}

// CollaboratorError wraps a vendor API failure with the operation and
// model it happened for.
type CollaboratorError struct {
	Op    string
	Model string
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed for model %s: %v", e.Op, e.Model, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
