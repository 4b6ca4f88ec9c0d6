package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Command is a single device action parsed out of the model's reply.
// Invariants: EntityID carries a domain prefix ("light.kitchen"); Action is a
// member of the action table for that domain; ServiceParams, when present, is a
// flat mapping. Commands are constructed only by decision validation and are
// consumed exactly once by the dispatcher.
type Command struct {
	EntityID      string         `json:"entity_id"`
	Action        string         `json:"action"`
	ServiceParams map[string]any `json:"service_params,omitempty"`
}

// Decision is the model's validated reply. An empty Commands slice is a valid
// decision: the model declined to act and said why in Reasoning.
type Decision struct {
	Reasoning string    `json:"reasoning"`
	Commands  []Command `json:"commands"`
}

// EntityState mirrors a Home Assistant state object.
type EntityState struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// RateLimitError is the distinguished 429 condition from the chat-completion
// endpoint. RetryAfter is zero when the server sent no usable hint; Body keeps
// the error detail so the monitor can still mine a hint out of it.
type RateLimitError struct {
	Body       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry after %s: %s", e.RetryAfter, e.Body)
	}
	return "rate limit exceeded: " + e.Body
}

func (e *RateLimitError) Unwrap() error { return ErrUpstreamRateLimit }

// AIClient (port)

type AIClient interface {
	// Decide sends one rendered prompt through the chat-completion endpoint and
	// returns the extracted, schema-validated decision. A 429 surfaces as
	// *RateLimitError; a reply with no valid decision wraps ErrSchemaInvalid.
	Decide(ctx context.Context, prompt string) (*Decision, error)
}

// Home Assistant collaborator (ports). The only contract the core relies on is
// "gives states in, takes service calls out".

type StateReader interface {
	GetStates(ctx context.Context, entityIDs []string) (map[string]EntityState, error)
}

type ServiceCaller interface {
	CallService(ctx context.Context, domain, service string, data map[string]any) error
}

type Notifier interface {
	Notify(ctx context.Context, title, message, notificationID string) error
}
