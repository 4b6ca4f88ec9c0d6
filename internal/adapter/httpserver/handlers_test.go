package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/ai/openrouter"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/config"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/usecase"
)

type stubAI struct {
	dec *domain.Decision
	err error
}

func (s *stubAI) Decide(context.Context, string) (*domain.Decision, error) { return s.dec, s.err }

type stubStates struct{}

func (stubStates) GetStates(context.Context, []string) (map[string]domain.EntityState, error) {
	return map[string]domain.EntityState{}, nil
}

type stubCaller struct{}

func (stubCaller) CallService(context.Context, string, string, map[string]any) error { return nil }

type stubNotifier struct{}

func (stubNotifier) Notify(context.Context, string, string, string) error { return nil }

type stubQuota struct {
	ks  *openrouter.KeyStatus
	err error
}

func (s *stubQuota) KeyStatus(context.Context) (*openrouter.KeyStatus, error) { return s.ks, s.err }

func newTestServer(t *testing.T, aicl domain.AIClient, quota QuotaProber) *Server {
	t.Helper()
	table := domain.DefaultActionTable()
	monitor := usecase.NewRateLimitMonitor(stubNotifier{}, time.Minute, time.Hour)
	t.Cleanup(monitor.Stop)
	engine := usecase.NewEngine(
		config.Config{Model: "deepseek/deepseek-chat", UpdateInterval: time.Hour},
		aicl, stubStates{}, usecase.NewDispatcher(stubCaller{}, table), monitor, table,
	)
	return NewServer(engine, quota)
}

func TestCommandHandler_Success(t *testing.T) {
	srv := newTestServer(t, &stubAI{dec: &domain.Decision{
		Reasoning: "done",
		Commands:  []domain.Command{{EntityID: "light.kitchen", Action: "turn_on"}},
	}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/command", strings.NewReader(`{"command": "lights on"}`))
	rec := httptest.NewRecorder()
	srv.CommandHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res usecase.CycleResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "done", res.Reasoning)
	assert.Equal(t, 1, res.Commands)
	assert.Equal(t, 1, res.Succeeded)
}

func TestCommandHandler_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &stubAI{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/command", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	srv.CommandHandler()(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ARGUMENT")
}

func TestCommandHandler_EmptyCommand(t *testing.T) {
	srv := newTestServer(t, &stubAI{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/command", strings.NewReader(`{"command": ""}`))
	rec := httptest.NewRecorder()
	srv.CommandHandler()(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandHandler_WhileRateLimited(t *testing.T) {
	srv := newTestServer(t, &stubAI{}, nil)
	srv.engine.Monitor().ReportLimitHit(&domain.RateLimitError{RetryAfter: time.Hour})

	req := httptest.NewRequest(http.MethodPost, "/v1/command", strings.NewReader(`{"command": "hi"}`))
	rec := httptest.NewRecorder()
	srv.CommandHandler()(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestCommandHandler_SchemaInvalid(t *testing.T) {
	srv := newTestServer(t, &stubAI{err: domain.ErrSchemaInvalid}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/command", strings.NewReader(`{"command": "hi"}`))
	rec := httptest.NewRecorder()
	srv.CommandHandler()(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "SCHEMA_INVALID")
}

func TestStatusHandler_NoQuotaProber(t *testing.T) {
	srv := newTestServer(t, &stubAI{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.StatusHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, false, res["rate_limited"])
	assert.NotContains(t, res, "key")
}

func TestStatusHandler_WithQuota(t *testing.T) {
	ks := &openrouter.KeyStatus{}
	ks.Data.Usage = 2.5
	ks.Data.IsFreeTier = true
	srv := newTestServer(t, &stubAI{}, &stubQuota{ks: ks})

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.StatusHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	key, ok := res["key"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2.5, key["usage"])
	assert.Equal(t, true, key["is_free_tier"])
	assert.Equal(t, float64(50), key["free_model_daily_limit"])
}

func TestStatusHandler_QuotaProbeFailureDegrades(t *testing.T) {
	srv := newTestServer(t, &stubAI{}, &stubQuota{err: errors.New("upstream down")})
	srv.engine.Monitor().ReportLimitHit(&domain.RateLimitError{RetryAfter: time.Hour})

	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.StatusHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, true, res["rate_limited"])
	assert.NotContains(t, res, "key")
}
