package cooldown

import (
	"strings"
	"time"

	"github.com/watchbridge/syncd/internal/cache"
	"github.com/watchbridge/syncd/internal/models"
)

// DefaultTTL is the suppression window applied after a successful
// mirror write (§4.5). Tune to at least 2x typical propagation latency.
const DefaultTTL = 30 * time.Second

// Set suppresses return events after a successful write. It wraps
// cache.Cache, which already expires and evicts entries lazily on Get,
// satisfying the "cleaned lazily" requirement without a separate sweep.
type Set struct {
	cache *cache.Cache
	ttl   time.Duration
}

// New creates a cooldown set with the given TTL. Zero means DefaultTTL.
func New(ttl time.Duration) *Set {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Set{cache: cache.New(ttl), ttl: ttl}
}

// Mark records that eventType for item identity was just written
// successfully to targetPeer for username.
func (s *Set) Mark(targetPeer, username, identity string, eventType models.EventType) {
	if identity == "" {
		// An empty identity key disables cooldown for this event,
		// matching get_item_identity_key's "empty only when none are
		// supplied" rule — there is nothing stable to key on.
		return
	}
	s.cache.Set(key(targetPeer, username, identity, eventType), true)
}

// Active reports whether a matching write happened within the TTL.
func (s *Set) Active(targetPeer, username, identity string, eventType models.EventType) bool {
	if identity == "" {
		return false
	}
	_, ok := s.cache.Get(key(targetPeer, username, identity, eventType))
	return ok
}

func key(targetPeer, username, identity string, eventType models.EventType) string {
	var b strings.Builder
	b.WriteString(targetPeer)
	b.WriteByte('\x00')
	b.WriteString(strings.ToLower(username))
	b.WriteByte('\x00')
	b.WriteString(identity)
	b.WriteByte('\x00')
	b.WriteString(string(eventType))
	return b.String()
}
