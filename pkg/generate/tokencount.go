package generate

import (
	"sync"

	"github.com/weaviate/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
	encodingErr  error
)

// approximateTokenCount counts with a local cl100k_base encoder. Both
// adapters use it: neither vendor exposes a counting endpoint worth a
// network round trip for an estimate.
func approximateTokenCount(text string) (int, error) {
	encodingOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")
	})
	if encodingErr != nil {
		return 0, encodingErr
	}
	return len(encoding.Encode(text, nil, nil)), nil
}
