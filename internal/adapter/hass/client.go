// Package hass is a minimal Home Assistant REST API client.
//
// It fulfils the collaborator contract the automation core relies on: entity
// states in, service calls out, plus persistent notifications for the
// rate-limit monitor.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

const requestTimeout = 10 * time.Second

// Client talks to a Home Assistant instance over its REST API.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// New constructs a client for the given base URL and long-lived access token.
func New(baseURL, token string) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("HomeAssistant %s %s", r.Method, r.URL.Path)
		}),
	)
	return &Client{
		baseURL: baseURL,
		token:   token,
		hc: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
}

// GetState fetches the current state of a single entity.
func (c *Client) GetState(ctx context.Context, entityID string) (domain.EntityState, error) {
	var st domain.EntityState
	req, err := c.newRequest(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return st, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return st, fmt.Errorf("hass get state %s: %w", entityID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return st, fmt.Errorf("hass get state %s: %w", entityID, domain.ErrInvalidArgument)
	}
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("hass get state %s: status %d", entityID, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("hass get state %s: decode: %w", entityID, err)
	}
	return st, nil
}

// GetStates fetches states for the given entities. Entities that are missing
// or fail to load are logged and skipped so one dead sensor does not blind
// the whole snapshot.
func (c *Client) GetStates(ctx context.Context, entityIDs []string) (map[string]domain.EntityState, error) {
	states := make(map[string]domain.EntityState, len(entityIDs))
	for _, id := range entityIDs {
		st, err := c.GetState(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("entity state unavailable", slog.String("entity_id", id), slog.Any("error", err))
			continue
		}
		states[id] = st
	}
	return states, nil
}

// CallService invokes POST /api/services/{domain}/{service} with the given
// payload and waits for the call to complete.
func (c *Client) CallService(ctx context.Context, dom, service string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("hass call service %s.%s: %w", dom, service, err)
	}
	path := "/api/services/" + url.PathEscape(dom) + "/" + url.PathEscape(service)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("hass call service %s.%s: %w", dom, service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hass call service %s.%s: status %d", dom, service, resp.StatusCode)
	}
	return nil
}

// Notify creates (or replaces, when notificationID is set) a persistent
// notification in the Home Assistant frontend.
func (c *Client) Notify(ctx context.Context, title, message, notificationID string) error {
	data := map[string]any{
		"title":   title,
		"message": message,
	}
	if notificationID != "" {
		data["notification_id"] = notificationID
	}
	return c.CallService(ctx, "persistent_notification", "create", data)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	}
	if err != nil {
		return nil, fmt.Errorf("hass request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
