package conversation

import (
	"github.com/huandu/go-clone"
)

const (
	DefaultTemperature     = 0.7
	DefaultTopP            = 1.0
	DefaultTopK            = 40
	DefaultMaxOutputTokens = 4096
)

// GenerationConfig holds the recognized generation options for a
// conversation. The zero value is not meaningful; use
// NewGenerationConfig to get the defaults and override from there.
type GenerationConfig struct {
	Temperature     float64  `json:"temperature" yaml:"temperature" jsonschema:"minimum=0,maximum=2"`
	TopP            float64  `json:"top_p" yaml:"top_p" jsonschema:"minimum=0,maximum=1"`
	TopK            int      `json:"top_k" yaml:"top_k" jsonschema:"minimum=1"`
	MaxOutputTokens int      `json:"max_output_tokens" yaml:"max_output_tokens" jsonschema:"minimum=1"`
	StopSequences   []string `json:"stop_sequences,omitempty" yaml:"stop_sequences,omitempty"`
	JSONMode        bool     `json:"json_mode" yaml:"json_mode"`

	// Grounding asks the model to back answers with retrieved sources.
	// The threshold is the dynamic retrieval cutoff, 0.0 meaning
	// "always attempt".
	GroundingEnabled   bool    `json:"grounding_enabled" yaml:"grounding_enabled"`
	GroundingThreshold float64 `json:"grounding_threshold" yaml:"grounding_threshold" jsonschema:"minimum=0,maximum=1"`
}

func NewGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		Temperature:     DefaultTemperature,
		TopP:            DefaultTopP,
		TopK:            DefaultTopK,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

func (c *GenerationConfig) Clone() *GenerationConfig {
	return clone.Clone(c).(*GenerationConfig)
}

// ForSummary derives the reduced configuration used for history
// summarization: low temperature, and an output budget of at least
// 1024 tokens or a fifth of the model ceiling, whichever is larger.
func (c *GenerationConfig) ForSummary(modelCeiling int) *GenerationConfig {
	ret := c.Clone()
	ret.Temperature = 0.3
	ret.MaxOutputTokens = 1024
	if budget := modelCeiling / 5; budget > ret.MaxOutputTokens {
		ret.MaxOutputTokens = budget
	}
	ret.StopSequences = nil
	ret.JSONMode = false
	return ret
}
