package generate

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

func TestOllamaOptionsMapping(t *testing.T) {
	cfg := conversation.NewGenerationConfig()
	cfg.Temperature = 0.3
	cfg.TopK = 20
	cfg.MaxOutputTokens = 512

	opts := ollamaOptions(cfg)
	assert.InDelta(t, 0.3, opts["temperature"].(float64), 1e-9)
	assert.Equal(t, 20, opts["top_k"])
	assert.Equal(t, 512, opts["num_predict"])
	assert.NotContains(t, opts, "stop")

	cfg.StopSequences = []string{"###"}
	opts = ollamaOptions(cfg)
	assert.Equal(t, []string{"###"}, opts["stop"])
}

func TestCollaboratorError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &CollaboratorError{Op: "generate", Model: "llama2", Err: inner}

	assert.Equal(t, "generate failed for model llama2: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
}
