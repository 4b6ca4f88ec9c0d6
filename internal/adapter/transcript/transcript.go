// Package transcript appends raw prompt/reply pairs to a diagnostic log file.
//
// The file is append-only text for human debugging, never parsed by the
// system. Write failures are logged and swallowed; a broken diagnostic log
// must never fail an automation cycle.
package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const promptPreviewLen = 200

// Writer serializes appends to the transcript file. A nil Writer or an empty
// path disables logging entirely.
type Writer struct {
	mu   sync.Mutex
	path string
}

// New returns a Writer appending to path, or nil when path is empty.
func New(path string) *Writer {
	if path == "" {
		return nil
	}
	return &Writer{path: path}
}

// Append writes one timestamped block with a truncated prompt and the full
// raw reply.
func (w *Writer) Append(prompt, reply string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("transcript open failed", slog.String("path", w.path), slog.Any("error", err))
		return
	}
	defer func() { _ = f.Close() }()

	entry := fmt.Sprintf("\n--- %s ---\nPrompt: %s...\nResponse: %s\n--- END ---\n",
		time.Now().Format(time.RFC3339), truncate(prompt, promptPreviewLen), reply)
	if _, err := f.WriteString(entry); err != nil {
		slog.Error("transcript write failed", slog.String("path", w.path), slog.Any("error", err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
