package generate

import (
	"context"
	"strings"

	"github.com/jmorganca/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// OllamaClient adapts a local ollama daemon to the Client contract.
type OllamaClient struct {
	client *api.Client
}

var _ Client = (*OllamaClient)(nil)

// NewOllamaClient connects using OLLAMA_HOST, defaulting to the local
// daemon.
func NewOllamaClient() (*OllamaClient, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, errors.Wrap(err, "could not create ollama client")
	}
	return &OllamaClient{client: client}, nil
}

func (c *OllamaClient) Generate(
	ctx context.Context,
	modelID string,
	prompt string,
	config *conversation.GenerationConfig,
	priorTurns []Turn,
) (string, error) {
	if config == nil {
		config = conversation.NewGenerationConfig()
	}
	if config.GroundingEnabled {
		log.Warn().Str("model", modelID).Msg("grounding requested but not supported by this client")
	}

	msgs := make([]api.Message, 0, len(priorTurns)+1)
	for _, turn := range priorTurns {
		msgs = append(msgs, api.Message{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, api.Message{Role: string(conversation.RoleUser), Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    modelID,
		Messages: msgs,
		Stream:   &stream,
		Options:  ollamaOptions(config),
	}

	log.Debug().Str("model", modelID).Int("messages", len(msgs)).Msg("requesting ollama chat")
	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", &CollaboratorError{Op: "generate", Model: modelID, Err: err}
	}
	return sb.String(), nil
}

func ollamaOptions(config *conversation.GenerationConfig) map[string]interface{} {
	opts := map[string]interface{}{
		"temperature": config.Temperature,
		"top_p":       config.TopP,
		"top_k":       config.TopK,
		"num_predict": config.MaxOutputTokens,
	}
	if len(config.StopSequences) > 0 {
		opts["stop"] = config.StopSequences
	}
	return opts
}

func (c *OllamaClient) CountTokens(_ context.Context, modelID string, text string) (int, error) {
	n, err := approximateTokenCount(text)
	if err != nil {
		return 0, &CollaboratorError{Op: "count-tokens", Model: modelID, Err: err}
	}
	return n, nil
}

// ModelOutputCeiling always reports the fallback; ollama models do not
// expose a usable output token limit.
func (c *OllamaClient) ModelOutputCeiling(_ context.Context, modelID string) int {
	log.Debug().Str("model", modelID).Int("fallback", FallbackModelOutputCeiling).
		Msg("ollama model output limit unknown, using fallback")
	return FallbackModelOutputCeiling
}
