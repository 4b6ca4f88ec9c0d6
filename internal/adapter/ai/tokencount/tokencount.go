// Package tokencount provides token counting for rendered prompts.
//
// It uses tiktoken-go to approximate how much of the model's context a prompt
// will consume, so oversized sensor snapshots show up in the logs before the
// provider truncates or rejects them.
package tokencount

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting with per-model encoding cache.
type Counter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{cache: make(map[string]*tiktoken.Tiktoken)}
}

// CountChatTokens counts tokens for a system+user chat completion request,
// including the per-message envelope overhead used by OpenAI-compatible APIs.
// When no encoding can be resolved it falls back to the rough four-characters-
// per-token estimate rather than failing.
func (c *Counter) CountChatTokens(systemPrompt, userPrompt, model string) int {
	enc, err := c.encodingFor(model)
	if err != nil {
		return (len(systemPrompt) + len(userPrompt)) / 4
	}

	// 3 tokens per message plus 1 for the role, and the reply is primed with
	// <|start|>assistant<|message|>.
	n := 0
	for _, msg := range []struct{ role, content string }{
		{"system", systemPrompt},
		{"user", userPrompt},
	} {
		n += 3
		n += len(enc.Encode(msg.role, nil, nil))
		n += len(enc.Encode(msg.content, nil, nil))
		n++
	}
	return n + 3
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	key := normalizeModelName(model)

	c.mu.RLock()
	enc, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[key]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(key)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.cache[key] = enc
	return enc, nil
}

// normalizeModelName maps OpenRouter model IDs (provider-prefixed, possibly
// ":free"-suffixed) onto tiktoken-compatible names. DeepSeek and the other
// non-OpenAI families tokenize closely enough to cl100k_base for a log-line
// estimate, so they all collapse onto the gpt-4 encoding.
func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")

	switch {
	case strings.Contains(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	default:
		return "gpt-4"
	}
}
