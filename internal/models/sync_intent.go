package models

// SyncIntent is one typed state change parsed out of a webhook envelope,
// not yet fanned out to any target peer. The event parser emits zero or
// more of these per inbound webhook.
type SyncIntent struct {
	EventType EventType

	SourcePeer   string
	Username     string
	SourceUserID string
	SourceItemID string
	ItemName     string
	ItemPath     string

	ProviderImdb string
	ProviderTmdb string
	ProviderTvdb string

	// Data carries the event-specific payload that PendingEvent.EventData
	// is serialized from.
	Data SyncIntentData
}

// SyncIntentData holds the union of fields any single event type needs.
// Only the fields relevant to EventType are meaningful; the rest are
// zero values. The fields carry no JSON tags, so PendingEvent.EventData
// holds every field, keyed by its Go field name.
type SyncIntentData struct {
	PositionTicks int64
	Played        bool
	IsFavorite    bool
	Likes         bool
	Rating        float64
	PlayCount     int64
	LastPlayed    string // RFC3339, as received
	AudioIndex    int
	SubtitleIndex int
}

// IdentityKey returns this intent's cross-peer item identity, using the
// same path-over-provider-id preference order as PendingEvent.
func (s *SyncIntent) IdentityKey() string {
	return ItemIdentityKey(s.ItemPath, s.ProviderImdb, s.ProviderTmdb, s.ProviderTvdb)
}
