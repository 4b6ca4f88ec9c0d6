package ai

import (
	"encoding/json"
	"log/slog"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

// ValidateDecision checks an extracted JSON value against the expected command
// schema and converts it into a Decision. It fails closed: anything that is
// not a mapping with a "reasoning" field and a "commands" list of well-formed
// command mappings is rejected. An empty commands list is valid (the model
// declined to act).
func ValidateDecision(raw json.RawMessage) (*domain.Decision, bool) {
	var top map[string]any
	if err := json.Unmarshal(raw, &top); err != nil {
		slog.Debug("decision is not a mapping", slog.Any("error", err))
		return nil, false
	}
	if _, ok := top["reasoning"]; !ok {
		slog.Debug("decision missing reasoning field")
		return nil, false
	}
	cmds, ok := top["commands"]
	if !ok {
		slog.Debug("decision missing commands field")
		return nil, false
	}
	list, ok := cmds.([]any)
	if !ok {
		slog.Debug("decision commands field is not a list")
		return nil, false
	}
	for _, c := range list {
		m, ok := c.(map[string]any)
		if !ok {
			slog.Debug("command is not a mapping")
			return nil, false
		}
		if _, ok := m["entity_id"]; !ok {
			return nil, false
		}
		if _, ok := m["action"]; !ok {
			return nil, false
		}
		if sp, present := m["service_params"]; present {
			if _, ok := sp.(map[string]any); !ok {
				slog.Debug("command service_params is not a mapping")
				return nil, false
			}
		}
	}

	var dec domain.Decision
	if err := json.Unmarshal(raw, &dec); err != nil {
		// Shape checks passed but a field has the wrong scalar type
		// (e.g. a numeric entity_id). Still a validation failure.
		slog.Debug("decision failed struct decode", slog.Any("error", err))
		return nil, false
	}
	return &dec, true
}
