package generate

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// Known per-model output limits; anything else reports the fallback.
var openAIOutputCeilings = map[string]int{
	"gpt-4":         8192,
	"gpt-4-turbo":   4096,
	"gpt-4o":        4096,
	"gpt-4o-mini":   16384,
	"gpt-3.5-turbo": 4096,
}

type openAISettings struct {
	baseURL string
}

type OpenAIOption func(*openAISettings)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(u string) OpenAIOption {
	return func(s *openAISettings) {
		s.baseURL = u
	}
}

// OpenAIClient adapts the OpenAI chat completion API to the Client
// contract.
type OpenAIClient struct {
	client *go_openai.Client
}

var _ Client = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey string, options ...OpenAIOption) *OpenAIClient {
	s := &openAISettings{}
	for _, o := range options {
		o(s)
	}

	cfg := go_openai.DefaultConfig(apiKey)
	if s.baseURL != "" {
		cfg.BaseURL = s.baseURL
	}
	return &OpenAIClient{client: go_openai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) Generate(
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

	msgs := make([]go_openai.ChatCompletionMessage, 0, len(priorTurns)+1)
	for _, turn := range priorTurns {
		role := go_openai.ChatMessageRoleUser
		if turn.Role == conversation.RoleAssistant {
			role = go_openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, go_openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	msgs = append(msgs, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: prompt})

	req := go_openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    msgs,
		Temperature: float32(config.Temperature),
		TopP:        float32(config.TopP),
		MaxTokens:   config.MaxOutputTokens,
		Stop:        config.StopSequences,
	}
	if config.JSONMode {
		req.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
			Type: go_openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	log.Debug().Str("model", modelID).Int("messages", len(msgs)).Msg("requesting chat completion")
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &CollaboratorError{Op: "generate", Model: modelID, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &CollaboratorError{Op: "generate", Model: modelID, Err: errors.New("no completion choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) CountTokens(_ context.Context, modelID string, text string) (int, error) {
	n, err := approximateTokenCount(text)
	if err != nil {
		return 0, &CollaboratorError{Op: "count-tokens", Model: modelID, Err: err}
	}
	return n, nil
}

func (c *OpenAIClient) ModelOutputCeiling(_ context.Context, modelID string) int {
	if limit, ok := openAIOutputCeilings[modelID]; ok {
		return limit
	}
	log.Debug().Str("model", modelID).Int("fallback", FallbackModelOutputCeiling).
		Msg("unknown model output limit, using fallback")
	return FallbackModelOutputCeiling
}
