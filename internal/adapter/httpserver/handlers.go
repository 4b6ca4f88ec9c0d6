package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/ai/openrouter"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/usecase"
)

const statusProbeTimeout = 10 * time.Second

// QuotaProber reports OpenRouter key usage for the status endpoint.
type QuotaProber interface {
	KeyStatus(ctx context.Context) (*openrouter.KeyStatus, error)
}

// Server exposes the automation engine over HTTP.
type Server struct {
	engine *usecase.Engine
	quota  QuotaProber
}

// NewServer builds the HTTP facade.
func NewServer(engine *usecase.Engine, quota QuotaProber) *Server {
	return &Server{engine: engine, quota: quota}
}

type commandRequest struct {
	Command string `json:"command"`
}

// CommandHandler handles POST /v1/command: one user-invoked automation cycle.
func (s *Server) CommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req commandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument))
			return
		}
		if req.Command == "" {
			writeError(w, fmt.Errorf("%w: command is required", domain.ErrInvalidArgument))
			return
		}

		result, err := s.engine.ExecuteCommand(r.Context(), req.Command)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type statusResponse struct {
	RateLimited bool       `json:"rate_limited"`
	Key         *keyStatus `json:"key,omitempty"`
}

type keyStatus struct {
	Usage          float64  `json:"usage"`
	Limit          *float64 `json:"limit"`
	LimitRemaining *float64 `json:"limit_remaining"`
	IsFreeTier     bool     `json:"is_free_tier"`
	DailyLimit     int      `json:"free_model_daily_limit"`
}

// StatusHandler handles GET /v1/status: rate-limit state plus a live quota
// probe against the OpenRouter key endpoint. A failed probe degrades to the
// local state only.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{RateLimited: s.engine.Monitor().IsLimited()}

		if s.quota != nil {
			ctx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
			defer cancel()
			ks, err := s.quota.KeyStatus(ctx)
			if err != nil {
				LoggerFrom(r).Warn("quota probe failed", slog.Any("error", err))
			} else {
				resp.Key = &keyStatus{
					Usage:          ks.Data.Usage,
					Limit:          ks.Data.Limit,
					LimitRemaining: ks.Data.LimitRemaining,
					IsFreeTier:     ks.Data.IsFreeTier,
					DailyLimit:     ks.FreeModelDailyLimit(),
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
