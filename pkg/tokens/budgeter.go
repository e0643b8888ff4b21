// Package tokens estimates the token overhead a conversation's system
// instruction and file context add to every prompt, and clamps output
// budgets against model ceilings.
package tokens

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/filecontext"
)

// Counter is the external token-counting collaborator.
type Counter interface {
	CountTokens(ctx context.Context, modelID string, text string) (int, error)
}

type Budgeter struct {
	counter Counter
}

func NewBudgeter(counter Counter) *Budgeter {
	return &Budgeter{counter: counter}
}

// Estimate counts the fixed prompt overhead: the wrapped system
// instruction plus the formatted file context. When both are empty the
// estimate is 0 and the counter is never consulted.
func (b *Budgeter) Estimate(
	ctx context.Context,
	modelID string,
	systemInstruction string,
	contents map[string]string,
	roots conversation.PathSet,
) (int, error) {
	text := conversation.FormatSystemInstruction(systemInstruction) + filecontext.Format(contents, roots)
	if text == "" {
		return 0, nil
	}

	count, err := b.counter.CountTokens(ctx, modelID, text)
	if err != nil {
		return 0, errors.Wrap(err, "could not count tokens")
	}
	log.Trace().Str("model", modelID).Int("tokens", count).Msg("estimated context tokens")
	return count, nil
}

// ClampMaxOutput bounds a requested max-output-tokens setting to the
// model's ceiling, never dropping below 1.
func ClampMaxOutput(requested, modelCeiling int) int {
	if requested > modelCeiling {
		requested = modelCeiling
	}
	if requested < 1 {
		return 1
	}
	return requested
}
