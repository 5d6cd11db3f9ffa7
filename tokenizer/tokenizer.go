// Package tokenizer counts prompt tokens the way the completion model does.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter returns the number of tokens in text.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts with the BPE encoding of a model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// NewTiktoken loads the encoding for model (e.g. gpt-3.5-turbo).
func NewTiktoken(model string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// Words counts whitespace-separated words. Used in tests and when no BPE
// encoding can be loaded offline.
type Words struct{}

func (Words) Count(text string) int { return len(strings.Fields(text)) }
