package tokens

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

// TiktokenCounter counts with a local BPE codec, so estimates never
// leave the process. Unknown models fall back to an encoding guessed
// from the model name.
type TiktokenCounter struct {
	mu     sync.Mutex
	codecs map[string]tokenizer.Codec
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		codecs: make(map[string]tokenizer.Codec),
	}
}

var _ Counter = (*TiktokenCounter)(nil)

func (c *TiktokenCounter) CountTokens(_ context.Context, modelID string, text string) (int, error) {
	codec, err := c.codecFor(modelID)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

func (c *TiktokenCounter) codecFor(modelID string) (tokenizer.Codec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if codec, ok := c.codecs[modelID]; ok {
		return codec, nil
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(modelID))
	if err != nil {
		codec, err = tokenizer.Get(defaultEncoding(modelID))
		if err != nil {
			return nil, errors.Wrapf(err, "no codec for model %s", modelID)
		}
	}
	c.codecs[modelID] = codec
	return codec, nil
}

func defaultEncoding(modelID string) tokenizer.Encoding {
	switch {
	case strings.HasPrefix(modelID, "text-davinci-002"), strings.HasPrefix(modelID, "text-davinci-003"):
		return tokenizer.P50kBase
	default:
		// cl100k_base is the closest approximation for models the
		// tokenizer does not know, including non-OpenAI ones.
		return tokenizer.Cl100kBase
	}
}
