package models

// SyncLogEntry is an append-only audit record. The pipeline never reads
// it back; it exists for the status API and for operator troubleshooting.
type SyncLogEntry struct {
	ID           int64
	EventType    EventType
	SourcePeer   string
	TargetPeer   string
	Username     string
	SourceItemID string
	ItemName     string
	SyncedValue  string // e.g. "played=True (already set)"
	Success      bool
	Message      string
	CreatedAt    int64
}
