package models

// Peer identifies one media-server instance participating in state sync.
// Static for the life of the process: loaded once from configuration,
// referenced everywhere else by Name.
type Peer struct {
	Name         string
	BaseURL      string
	APIKey       string
	Passwordless bool
}

// UserMapping maps a username on a source peer to the opaque user id the
// target peer assigned it. Unique by (UsernameLower, PeerName).
type UserMapping struct {
	ID            int64
	UsernameLower string
	PeerName      string
	PeerUserID    string
	CreatedAt     int64 // unix seconds
	UpdatedAt     int64
}

// ItemPathCacheEntry maps a storage path on one peer to that peer's opaque
// item id. A hit may be stale; callers invalidate on a 404 from a mutation
// that cited the cached id.
type ItemPathCacheEntry struct {
	PeerName   string
	ItemPath   string
	PeerItemID string
	ItemName   string
	UpdatedAt  int64
}
