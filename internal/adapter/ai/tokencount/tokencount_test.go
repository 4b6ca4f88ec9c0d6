package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountChatTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	short := counter.CountChatTokens("system", "Hello, world!", "deepseek/deepseek-chat")
	long := counter.CountChatTokens("system", strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20), "deepseek/deepseek-chat")

	assert.Positive(t, short)
	assert.Greater(t, long, short, "longer prompt must count more tokens")
}

func TestCountChatTokens_CacheReuse(t *testing.T) {
	t.Parallel()

	counter := NewCounter()
	a := counter.CountChatTokens("s", "same prompt", "deepseek/deepseek-chat")
	b := counter.CountChatTokens("s", "same prompt", "deepseek/deepseek-chat:free")
	// Both collapse to the same encoding, so the counts agree.
	assert.Equal(t, a, b)
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  string
	}{
		{"deepseek/deepseek-chat", "gpt-4"},
		{"deepseek/deepseek-chat:free", "gpt-4"},
		{"openai/gpt-3.5-turbo", "gpt-3.5-turbo"},
		{"GPT-3.5-Turbo", "gpt-3.5-turbo"},
		{"anthropic/claude-3.5-sonnet", "gpt-4"},
		{"meta-llama/llama-3.1-8b-instruct:free", "gpt-4"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeModelName(tt.model))
		})
	}
}
