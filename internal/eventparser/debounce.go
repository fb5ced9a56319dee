package eventparser

import (
	"strings"
	"sync"
	"time"
)

// DefaultDebounceWindow matches the specification's default for
// PlaybackProgress throttling when no window is configured.
const DefaultDebounceWindow = 30 * time.Second

// Debouncer tracks the last time a PlaybackProgress record was allowed
// through for a given (source peer, username, source item) triple, so a
// player that reports progress every few seconds doesn't flood the queue.
type Debouncer struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
}

// NewDebouncer creates a debouncer with the given window. Zero or
// negative falls back to DefaultDebounceWindow.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{last: make(map[string]time.Time), window: window}
}

// Allow reports whether a progress update for this key may pass, and
// records now as the last-allowed time when it does. Call exactly once
// per candidate progress event; a rejected event must not update state.
func (d *Debouncer) Allow(sourcePeer, username, sourceItemID string, now time.Time) bool {
	k := debounceKey(sourcePeer, username, sourceItemID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.last[k]; ok && now.Sub(last) < d.window {
		return false
	}
	d.last[k] = now
	return true
}

func debounceKey(sourcePeer, username, sourceItemID string) string {
	var b strings.Builder
	b.WriteString(sourcePeer)
	b.WriteByte('\x00')
	b.WriteString(strings.ToLower(username))
	b.WriteByte('\x00')
	b.WriteString(sourceItemID)
	return b.String()
}
