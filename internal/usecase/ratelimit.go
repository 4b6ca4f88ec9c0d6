package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/observability"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

const (
	limitHitNotificationID = "openrouter_rate_limit"
	notifyTimeout          = 10 * time.Second
)

// retryAfterRe mines a delta-seconds hint out of the 429 error body when the
// header carried none.
var retryAfterRe = regexp.MustCompile(`Retry-After: (\d+)`)

// RateLimitMonitor tracks whether the upstream API is currently rate limiting
// us. Two states: normal and limited. On a 429 it computes the wait —
// server-suggested Retry-After when parseable, otherwise the next exponential
// backoff step — schedules automatic recovery, and notifies the user. While
// limited, cycles are skipped instead of piling more 429s onto the cooldown.
//
// Callers are the ticker goroutine, HTTP handlers and the recovery timer, so
// the state is mutex-guarded.
type RateLimitMonitor struct {
	notifier domain.Notifier

	mu      sync.Mutex
	limited bool
	expo    *backoff.ExponentialBackOff
	timer   *time.Timer
}

// NewRateLimitMonitor builds a monitor with the given initial exponential
// delay and ceiling. The backoff counter deliberately does not reset after
// recovery: doubling continues across episodes up to the ceiling.
func NewRateLimitMonitor(notifier domain.Notifier, initial, max time.Duration) *RateLimitMonitor {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initial
	expo.Multiplier = 2
	expo.MaxInterval = max
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0 // never give up
	expo.Reset()
	return &RateLimitMonitor{
		notifier: notifier,
		expo:     expo,
	}
}

// IsLimited reports whether the automation is currently paused.
func (m *RateLimitMonitor) IsLimited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limited
}

// ReportLimitHit transitions to the limited state, schedules recovery and
// returns the wait it chose. Safe to call while already limited: the recovery
// timer is simply pushed out.
func (m *RateLimitMonitor) ReportLimitHit(rle *domain.RateLimitError) time.Duration {
	m.mu.Lock()
	wait := rle.RetryAfter
	if wait <= 0 {
		wait = extractRetryAfter(rle.Body)
	}
	if wait > 0 {
		slog.Warn("rate limit exceeded, honoring server-suggested wait",
			slog.Duration("wait", wait))
	} else {
		wait = m.expo.NextBackOff()
		slog.Warn("rate limit exceeded, using exponential backoff",
			slog.Duration("wait", wait))
	}

	m.limited = true
	observability.RateLimited.Set(1)
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(wait, m.recover)
	m.mu.Unlock()

	m.notify("OpenRouter Rate Limit Exceeded", limitHitMessage(wait), limitHitNotificationID)
	return wait
}

// recover runs on the deferred timer: clear the flag, log, tell the user.
func (m *RateLimitMonitor) recover() {
	m.mu.Lock()
	m.limited = false
	m.timer = nil
	m.mu.Unlock()

	observability.RateLimited.Set(0)
	slog.Info("rate limit period ended, resuming normal operation")
	m.notify("OpenRouter Rate Limit Ended",
		"Rate limit period has ended. AI automation has resumed normal operation.", "")
}

// Stop cancels any pending recovery timer so a teardown cannot leave a stale
// callback firing against dead state.
func (m *RateLimitMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *RateLimitMonitor) notify(title, message, id string) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, title, message, id); err != nil {
		slog.Error("rate limit notification failed", slog.Any("error", err))
	}
}

func limitHitMessage(wait time.Duration) string {
	minutes := int(wait / time.Minute)
	return "OpenRouter API rate limit exceeded. " +
		"AI automation will resume in approximately " + strconv.Itoa(minutes) + " minutes. " +
		"Free tier limits: 20 requests/minute, 50 requests/day (if <10 credits), " +
		"1000 requests/day (if >=10 credits). " +
		"Consider upgrading at https://openrouter.ai/account"
}

func extractRetryAfter(body string) time.Duration {
	match := retryAfterRe.FindStringSubmatch(body)
	if match == nil {
		return 0
	}
	secs, err := strconv.Atoi(match[1])
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
