package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// KeyStatus is the response from the OpenRouter API key endpoint.
// Based on: https://openrouter.ai/docs/api-reference/limits
type KeyStatus struct {
	Data struct {
		Label          string   `json:"label"`
		Usage          float64  `json:"usage"`
		Limit          *float64 `json:"limit"`           // nil if unlimited
		IsFreeTier     bool     `json:"is_free_tier"`    // never purchased credits
		LimitRemaining *float64 `json:"limit_remaining"` // nil if unlimited
	} `json:"data"`
}

// KeyStatus fetches current key usage and remaining quota from /key.
func (c *Client) KeyStatus(ctx context.Context) (*KeyStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.OpenRouterBaseURL+"/key", nil)
	if err != nil {
		return nil, fmt.Errorf("key status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("key status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key status check failed with status %d", resp.StatusCode)
	}

	var ks KeyStatus
	if err := json.NewDecoder(resp.Body).Decode(&ks); err != nil {
		return nil, fmt.Errorf("key status decode: %w", err)
	}
	return &ks, nil
}

// FreeModelDailyLimit returns the documented daily request budget for free
// models: 50 requests/day before any credit purchase, 1000 after.
func (ks *KeyStatus) FreeModelDailyLimit() int {
	if ks.Data.IsFreeTier {
		return 50
	}
	return 1000
}
