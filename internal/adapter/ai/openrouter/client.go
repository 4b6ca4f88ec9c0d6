// Package openrouter implements the AI client against the OpenRouter
// chat-completion API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/ai"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/observability"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/transcript"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/config"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

const chatTimeout = 30 * time.Second

// systemPrompt constrains the model to emit RFC 8259 JSON only.
const systemPrompt = "You are a home automation system that responds ONLY with valid " +
	"RFC8259 compliant JSON without any additional text, explanations, or comments. " +
	"Your responses must be parseable by JSON.parse() without errors."

// Client implements domain.AIClient using the OpenRouter chat-completion API.
// One HTTP POST per Decide call; no retries here — a 429 is handed back to the
// caller as *domain.RateLimitError so the rate-limit monitor can react, and
// plain transport failures wait for the next periodic cycle.
type Client struct {
	cfg        config.Config
	hc         *http.Client
	transcript *transcript.Writer
}

// New constructs a client with the fixed request timeout and a traced transport.
func New(cfg config.Config, tw *transcript.Writer) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("OpenRouter %s %s", r.Method, r.URL.Host)
		}),
	)
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   chatTimeout,
			Transport: transport,
		},
		transcript: tw,
	}
}

// Decide sends one rendered prompt and returns the validated decision.
func (c *Client) Decide(ctx context.Context, prompt string) (*domain.Decision, error) {
	if c.cfg.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}

	payload := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}
	if wantsJSONMode(c.cfg.Model) {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	b, _ := json.Marshal(payload)

	start := time.Now()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenRouterBaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("openrouter request: %w", err)
	}
	r.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("HTTP-Referer", c.cfg.OpenRouterReferer)
	r.Header.Set("X-Title", c.cfg.OpenRouterTitle)

	resp, err := c.hc.Do(r)
	observability.AIRequestsTotal.WithLabelValues("openrouter", "chat").Inc()
	observability.AIRequestDuration.WithLabelValues("openrouter", "chat").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: openrouter chat: %v", domain.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("openrouter chat: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openrouter read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Warn("ai provider rate limited",
			slog.String("provider", "openrouter"),
			slog.Int("status", resp.StatusCode),
			slog.String("retry_after", resp.Header.Get("Retry-After")),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
		observability.RateLimitHitsTotal.Inc()
		return nil, &domain.RateLimitError{
			Body:       snippet(bodyBytes, 512),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("ai provider non-2xx",
			slog.String("provider", "openrouter"),
			slog.Int("status", resp.StatusCode),
			slog.String("model", c.cfg.Model),
			slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
			slog.String("body", snippet(bodyBytes, 512)))
		return nil, fmt.Errorf("openrouter chat status %d", resp.StatusCode)
	}

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("openrouter decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("empty choices from openrouter")
	}
	content := out.Choices[0].Message.Content
	slog.Debug("raw model reply", slog.String("content", content))

	// Diagnostic transcript; failure here is never fatal.
	c.transcript.Append(prompt, content)

	raw, ok := ai.Extract(content)
	if !ok {
		slog.Error("no JSON found in model reply", slog.String("content", content))
		return nil, fmt.Errorf("%w: no JSON in model reply", domain.ErrSchemaInvalid)
	}
	dec, ok := ai.ValidateDecision(raw)
	if !ok {
		slog.Error("model reply failed schema validation", slog.String("content", content))
		return nil, fmt.Errorf("%w: reply failed schema validation", domain.ErrSchemaInvalid)
	}
	return dec, nil
}

// wantsJSONMode reports whether the model supports strict JSON response mode.
func wantsJSONMode(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "gpt-4") || strings.Contains(m, "gpt-3.5") || strings.Contains(m, "json")
}

// parseRetryAfter handles the delta-seconds form of the header; the HTTP-date
// form is rare enough on this endpoint that it falls through to backoff.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func snippet(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
