package models

// PendingEvent is the write-ahead record for one not-yet-applied state
// mutation on one target peer. Exactly one non-terminal row may exist for
// a given dedup key (EventType, TargetPeer, Username, SourceItemID).
type PendingEvent struct {
	ID           int64
	EventType    EventType
	SourcePeer   string
	TargetPeer   string
	Username     string
	SourceUserID string

	SourceItemID string
	ItemName     string
	ItemPath     string // empty when unknown

	ProviderImdb string
	ProviderTmdb string
	ProviderTvdb string

	// EventData is the opaque JSON payload consumed by the worker when it
	// executes the mutation: the JSON encoding of SyncIntentData, keyed by
	// Go field name and holding every field, e.g.
	// {"PositionTicks":0,"Played":true,...}. Snake-case keys such as
	// "is_played" are not used.
	EventData string

	Status     PendingStatus
	RetryCount int
	MaxRetries int
	LastError  string

	ItemNotFoundCount int
	ItemNotFoundMax   int // -1 unbounded, 0 no retry, N>0 bounded

	CreatedAt   int64
	UpdatedAt   int64
	NextRetryAt *int64 // nil when immediately claimable
}

// DedupKey returns the key uniquely identifying this event's logical
// identity: at most one non-terminal row may share it.
func (p *PendingEvent) DedupKey() (eventType EventType, targetPeer, username, sourceItemID string) {
	return p.EventType, p.TargetPeer, p.Username, p.SourceItemID
}

// IdentityKey returns the cross-peer item identity for cooldown and
// dedup purposes: path takes precedence over provider ids, which are
// tried in imdb, tmdb, tvdb order. Empty when none are known.
func (p *PendingEvent) IdentityKey() string {
	return ItemIdentityKey(p.ItemPath, p.ProviderImdb, p.ProviderTmdb, p.ProviderTvdb)
}

// ItemIdentityKey computes the storage-or-provider identity key shared by
// the dispatcher's cooldown lookups and the worker's persisted rows. Path
// is preferred because it is meaningful for all content, including home
// media with no public-database provider id.
func ItemIdentityKey(path, imdb, tmdb, tvdb string) string {
	switch {
	case path != "":
		return "path:" + path
	case imdb != "":
		return "imdb:" + imdb
	case tmdb != "":
		return "tmdb:" + tmdb
	case tvdb != "":
		return "tvdb:" + tvdb
	default:
		return ""
	}
}
