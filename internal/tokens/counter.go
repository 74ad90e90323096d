// Package tokens keeps article bodies within a prompt token budget.
package tokens

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// charsPerToken is the rough ratio used when no codec is available.
const charsPerToken = 4

// Counter counts and truncates text with the tiktoken encoding of a model.
type Counter struct {
	encoding tokenizer.Encoding

	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewCounter creates a counter for model (for example "gpt-4o-mini").
func NewCounter(model string) *Counter {
	return &Counter{
		encoding:   modelToEncoding(model),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// Encoding returns the encoding the counter uses.
func (c *Counter) Encoding() tokenizer.Encoding {
	return c.encoding
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.cacheMu.RLock()
	if cached, ok := c.codecCache[c.encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(c.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[c.encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	codec, err := c.getCodec()
	if err != nil {
		return estimate(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return estimate(text)
	}
	return len(ids)
}

// Truncate returns the longest prefix of text that fits in maxTokens.
// maxTokens <= 0 disables truncation.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	codec, err := c.getCodec()
	if err != nil {
		return truncateRunes(text, maxTokens*charsPerToken)
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return truncateRunes(text, maxTokens*charsPerToken)
	}
	if len(ids) <= maxTokens {
		return text
	}

	out, err := codec.Decode(ids[:maxTokens])
	if err != nil {
		return truncateRunes(text, maxTokens*charsPerToken)
	}
	// A token boundary can split a multi-byte rune.
	return strings.ToValidUTF8(out, "")
}

func estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

func truncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}

// modelToEncoding maps model names to tiktoken encodings.
//
// Encoding reference:
// - O200kBase: GPT-5, GPT-4.1, GPT-4o, O1, O3, O4-mini and newer models
// - Cl100kBase: GPT-4, GPT-3.5-turbo
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-41"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase

	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase

	default:
		// Unknown and OpenAI-compatible models: o200k_base is the closest guess.
		return tokenizer.O200kBase
	}
}
