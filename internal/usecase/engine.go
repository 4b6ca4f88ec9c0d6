// Package usecase contains the automation core: prompt building, the cycle
// engine, command dispatch, and rate-limit handling.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/ai/tokencount"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/observability"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/config"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

// CycleResult summarizes one completed automation cycle.
type CycleResult struct {
	Reasoning string `json:"reasoning"`
	Commands  int    `json:"commands"`
	Succeeded int    `json:"succeeded"`
}

// Engine runs the request/response automation cycle: snapshot sensor states,
// render the prompt, ask the model, dispatch whatever survives validation.
// Cycles are serialized with a mutex so a user-invoked command cannot
// interleave with the periodic tick.
type Engine struct {
	cfg        config.Config
	ai         domain.AIClient
	states     domain.StateReader
	dispatcher *Dispatcher
	monitor    *RateLimitMonitor
	table      domain.ActionTable
	counter    *tokencount.Counter

	mu sync.Mutex
}

// NewEngine wires the automation core together.
func NewEngine(cfg config.Config, aicl domain.AIClient, states domain.StateReader, dispatcher *Dispatcher, monitor *RateLimitMonitor, table domain.ActionTable) *Engine {
	return &Engine{
		cfg:        cfg,
		ai:         aicl,
		states:     states,
		dispatcher: dispatcher,
		monitor:    monitor,
		table:      table,
		counter:    tokencount.NewCounter(),
	}
}

// Monitor exposes the rate-limit monitor for status reporting.
func (e *Engine) Monitor() *RateLimitMonitor { return e.monitor }

// Run drives the periodic cycle until ctx is cancelled, then cancels any
// pending rate-limit recovery timer.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.UpdateInterval)
	defer ticker.Stop()
	defer e.monitor.Stop()

	slog.Info("automation engine started", slog.Duration("interval", e.cfg.UpdateInterval))
	for {
		select {
		case <-ctx.Done():
			slog.Info("automation engine stopped")
			return
		case <-ticker.C:
			if _, err := e.cycle(ctx, "", "periodic"); err != nil {
				// Every failure kind is already logged and classified inside
				// the cycle; the periodic task itself must never die.
				slog.Debug("periodic cycle failed", slog.Any("error", err))
			}
		}
	}
}

// ExecuteCommand runs one user-invoked cycle with the given command text.
func (e *Engine) ExecuteCommand(ctx context.Context, command string) (*CycleResult, error) {
	if command == "" {
		return nil, fmt.Errorf("%w: command is required", domain.ErrInvalidArgument)
	}
	return e.cycle(ctx, command, "manual")
}

func (e *Engine) cycle(ctx context.Context, userCommand, trigger string) (*CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.monitor.IsLimited() {
		slog.Warn("skipping cycle due to active rate limiting", slog.String("trigger", trigger))
		observability.CyclesTotal.WithLabelValues(trigger, "skipped").Inc()
		return nil, fmt.Errorf("%w: cooldown in progress", domain.ErrRateLimited)
	}

	cycleID := uuid.NewString()
	lg := slog.With(slog.String("cycle_id", cycleID), slog.String("trigger", trigger))

	states, err := e.states.GetStates(ctx, e.cfg.SensorEntities)
	if err != nil {
		lg.Error("sensor snapshot failed", slog.Any("error", err))
		observability.CyclesTotal.WithLabelValues(trigger, "failed").Inc()
		return nil, fmt.Errorf("sensor snapshot: %w", err)
	}

	if userCommand == "" {
		userCommand = "Evaluate the current sensor data and decide whether any device adjustments are needed."
	}
	prompt := BuildPrompt(states, e.cfg.ActuatorEntities, e.table, userCommand)
	lg.Debug("prompt rendered",
		slog.Int("sensors", len(states)),
		slog.Int("prompt_tokens", e.counter.CountChatTokens("", prompt, e.cfg.Model)))

	dec, err := e.ai.Decide(ctx, prompt)
	if err != nil {
		var rle *domain.RateLimitError
		switch {
		case errors.As(err, &rle):
			wait := e.monitor.ReportLimitHit(rle)
			lg.Warn("cycle diverted to rate-limit cooldown", slog.Duration("wait", wait))
			observability.CyclesTotal.WithLabelValues(trigger, "rate_limited").Inc()
		case errors.Is(err, domain.ErrSchemaInvalid):
			lg.Error("model reply unusable, no action taken", slog.Any("error", err))
			observability.CyclesTotal.WithLabelValues(trigger, "invalid_reply").Inc()
		default:
			lg.Error("model communication failed", slog.Any("error", err))
			observability.CyclesTotal.WithLabelValues(trigger, "failed").Inc()
		}
		return nil, err
	}

	lg.Info("decision received",
		slog.String("reasoning", dec.Reasoning),
		slog.Int("commands", len(dec.Commands)))

	result := &CycleResult{Reasoning: dec.Reasoning, Commands: len(dec.Commands)}
	if len(dec.Commands) > 0 {
		result.Succeeded, _ = e.dispatcher.Dispatch(ctx, dec.Commands)
	}
	observability.CyclesTotal.WithLabelValues(trigger, "ok").Inc()
	return result, nil
}
