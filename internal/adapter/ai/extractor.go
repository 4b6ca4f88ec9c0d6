// Package ai extracts and validates decisions from raw LLM replies.
package ai

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("```json|```")

// Extract pulls the first JSON value out of a possibly noisy model reply.
// Markdown code fences are stripped first, then the text is scanned for the
// first syntactically valid top-level object; if no object parses, the scan is
// repeated for an array. Each candidate is fed to an incremental json.Decoder,
// so prose containing stray braces before the real payload cannot derail the
// extraction the way a greedy first-to-last span match would. Returns false
// when no valid value exists anywhere in the reply.
func Extract(raw string) (json.RawMessage, bool) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	if v, ok := scanFor(cleaned, '{'); ok {
		return v, true
	}
	if v, ok := scanFor(cleaned, '['); ok {
		return v, true
	}
	return nil, false
}

// scanFor attempts a decode at every occurrence of the opening byte and
// returns the first value that parses. Misses are logged at debug only.
func scanFor(s string, open byte) (json.RawMessage, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != open {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			slog.Debug("json candidate rejected",
				slog.Int("offset", i),
				slog.String("open", string(open)),
				slog.Any("error", err))
			continue
		}
		return v, true
	}
	return nil, false
}
