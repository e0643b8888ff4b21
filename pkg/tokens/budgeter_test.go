package tokens

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

type fakeCounter struct {
	calls int
	text  string
	count int
	err   error
}

func (f *fakeCounter) CountTokens(_ context.Context, _ string, text string) (int, error) {
	f.calls++
	f.text = text
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func TestEstimateEmptyInputsSkipsCounter(t *testing.T) {
	counter := &fakeCounter{count: 99}
	b := NewBudgeter(counter)

	n, err := b.Estimate(context.Background(), "gpt-4", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, counter.calls)

	// A whitespace-only instruction formats to nothing.
	n, err = b.Estimate(context.Background(), "gpt-4", "  \n\t", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, counter.calls)
}

func TestEstimateCountsInstructionPrefix(t *testing.T) {
	counter := &fakeCounter{count: 12}
	b := NewBudgeter(counter)

	n, err := b.Estimate(context.Background(), "gpt-4", "Be terse.", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, "--- System Instruction ---\nBe terse.\n--- End System Instruction ---\n\n", counter.text)
}

func TestEstimateIncludesFormattedContext(t *testing.T) {
	counter := &fakeCounter{count: 40}
	b := NewBudgeter(counter)

	root := t.TempDir()
	contents := map[string]string{
		filepath.Join(root, "a.go"): "package a\n",
	}

	n, err := b.Estimate(context.Background(), "gpt-4", "Be terse.", contents, conversation.NewPathSet(root))
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Contains(t, counter.text, "--- System Instruction ---\n")
	assert.Contains(t, counter.text, "--- Local File Context ---\n")
	assert.Contains(t, counter.text, "--- File: a.go ---")
}

func TestEstimatePropagatesCounterError(t *testing.T) {
	counter := &fakeCounter{err: errors.New("quota exceeded")}
	b := NewBudgeter(counter)

	_, err := b.Estimate(context.Background(), "gpt-4", "Be terse.", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestClampMaxOutput(t *testing.T) {
	cases := []struct {
		requested int
		ceiling   int
		want      int
	}{
		{4096, 8192, 4096},
		{10000, 8192, 8192},
		{8192, 8192, 8192},
		{0, 8192, 1},
		{-5, 8192, 1},
		{5, 3, 3},
		{0, 0, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClampMaxOutput(tc.requested, tc.ceiling),
			"requested=%d ceiling=%d", tc.requested, tc.ceiling)
	}
}

func TestTiktokenCounterCounts(t *testing.T) {
	c := NewTiktokenCounter()

	n, err := c.CountTokens(context.Background(), "gpt-4", "hello world")
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	again, err := c.CountTokens(context.Background(), "gpt-4", "hello world")
	require.NoError(t, err)
	assert.Equal(t, n, again)
}

func TestTiktokenCounterUnknownModelFallsBack(t *testing.T) {
	c := NewTiktokenCounter()

	n, err := c.CountTokens(context.Background(), "gemini-1.5-flash", "hello world")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}
