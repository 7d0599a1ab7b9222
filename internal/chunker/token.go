package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures the size of pending chunk text against MaxTokens.
type TokenCounter interface {
	Count(text string) int
}

// EstimateTokens counts whitespace-separated words. It is the default size
// measure for chunks and for short-page detection.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// WordCounter counts whitespace-separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int { return EstimateTokens(text) }

// TiktokenCounter counts BPE tokens for a named tiktoken encoding.
type TiktokenCounter struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base".
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenCounter returns the counter named by kind ("words" or "tiktoken").
func NewTokenCounter(kind, encoding string) (TokenCounter, error) {
	switch kind {
	case "", "words":
		return WordCounter{}, nil
	case "tiktoken":
		return NewTiktokenCounter(encoding)
	default:
		return nil, fmt.Errorf("unknown token counter %q", kind)
	}
}
