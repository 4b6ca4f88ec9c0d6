package domain

import "strings"

// ActionTable maps an entity domain ("light", "climate") to the set of service
// actions the model is allowed to invoke on entities of that domain. It is the
// sole authorization gate between the model's output and the service bus:
// anything not listed here never becomes a service call.
type ActionTable map[string][]string

// DefaultActionTable returns the built-in whitelist. Read-only after startup.
func DefaultActionTable() ActionTable {
	return ActionTable{
		"light":        {"turn_on", "turn_off", "toggle"},
		"switch":       {"turn_on", "turn_off", "toggle"},
		"climate":      {"set_temperature", "set_hvac_mode", "set_fan_mode"},
		"cover":        {"open_cover", "close_cover", "set_cover_position"},
		"media_player": {"play_media", "volume_set", "media_play", "media_pause"},
	}
}

// SplitEntityID splits "light.kitchen" into its domain and object id.
func SplitEntityID(entityID string) (domain, name string, ok bool) {
	domain, name, ok = strings.Cut(entityID, ".")
	if domain == "" || name == "" {
		return "", "", false
	}
	return domain, name, ok
}

// IsAllowed reports whether action may be invoked on entityID. Fails closed:
// unknown domains and unlisted actions are both rejected.
func (t ActionTable) IsAllowed(entityID, action string) bool {
	domain, _, ok := SplitEntityID(entityID)
	if !ok {
		return false
	}
	actions, ok := t[domain]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
