package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerationConfigDefaults(t *testing.T) {
	cfg := NewGenerationConfig()

	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 1.0, cfg.TopP)
	assert.Equal(t, 40, cfg.TopK)
	assert.Equal(t, 4096, cfg.MaxOutputTokens)
	assert.Empty(t, cfg.StopSequences)
	assert.False(t, cfg.JSONMode)
	assert.False(t, cfg.GroundingEnabled)
	assert.Equal(t, 0.0, cfg.GroundingThreshold)
}

func TestGenerationConfigCloneIsDeep(t *testing.T) {
	cfg := NewGenerationConfig()
	cfg.StopSequences = []string{"STOP"}

	cloned := cfg.Clone()
	cloned.StopSequences[0] = "HALT"
	cloned.Temperature = 0.1

	assert.Equal(t, "STOP", cfg.StopSequences[0])
	assert.Equal(t, 0.7, cfg.Temperature)
}

func TestForSummary(t *testing.T) {
	cfg := NewGenerationConfig()
	cfg.StopSequences = []string{"STOP"}
	cfg.JSONMode = true

	summary := cfg.ForSummary(8192)
	assert.Equal(t, 0.3, summary.Temperature)
	assert.Equal(t, 1638, summary.MaxOutputTokens)
	assert.Empty(t, summary.StopSequences)
	assert.False(t, summary.JSONMode)

	// Small ceilings still get the 1024 floor.
	assert.Equal(t, 1024, cfg.ForSummary(2048).MaxOutputTokens)

	// The source config is untouched.
	assert.Equal(t, 4096, cfg.MaxOutputTokens)
	assert.Equal(t, 0.7, cfg.Temperature)
}

func TestParseConfigFileOverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfigFile([]byte("temperature: 1.2\ntop_k: 10\n"))
	require.NoError(t, err)

	assert.Equal(t, 1.2, cfg.Temperature)
	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, 1.0, cfg.TopP)
	assert.Equal(t, 4096, cfg.MaxOutputTokens)
}

func TestParseConfigFileEmpty(t *testing.T) {
	cfg, err := ParseConfigFile([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, NewGenerationConfig(), cfg)
}

func TestParseConfigFileRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfigFile([]byte("temprature: 0.5\n"))
	require.Error(t, err)
}

func TestParseConfigFileRejectsOutOfRange(t *testing.T) {
	_, err := ParseConfigFile([]byte("temperature: 3.5\n"))
	require.Error(t, err)
}

func TestValidateConfigDocument(t *testing.T) {
	require.NoError(t, ValidateConfigDocument([]byte(`{"temperature": 0.5, "stop_sequences": ["a"]}`)))
	require.Error(t, ValidateConfigDocument([]byte(`{"temperature": "hot"}`)))
}
