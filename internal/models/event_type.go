package models

// EventType enumerates the kinds of per-item, per-user state a sync
// intent carries. One PendingEvent row always carries exactly one.
type EventType string

const (
	EventProgress       EventType = "PROGRESS"
	EventWatched        EventType = "WATCHED"
	EventFavorite       EventType = "FAVORITE"
	EventRating         EventType = "RATING"
	EventLikes          EventType = "LIKES"
	EventPlayCount      EventType = "PLAY_COUNT"
	EventLastPlayed     EventType = "LAST_PLAYED"
	EventAudioStream    EventType = "AUDIO_STREAM"
	EventSubtitleStream EventType = "SUBTITLE_STREAM"

	// EventUserLifecycle is a degenerate event type used only for Sync
	// Log entries produced by the user-lifecycle fan-out (create_user /
	// delete_user); it never backs a durable queue row.
	EventUserLifecycle EventType = "USER_LIFECYCLE"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventProgress, EventWatched, EventFavorite, EventRating, EventLikes,
		EventPlayCount, EventLastPlayed, EventAudioStream, EventSubtitleStream,
		EventUserLifecycle:
		return true
	default:
		return false
	}
}

// PendingStatus is the queue state machine for a PendingEvent row.
type PendingStatus string

const (
	StatusPending        PendingStatus = "PENDING"
	StatusProcessing     PendingStatus = "PROCESSING"
	StatusWaitingForItem PendingStatus = "WAITING_FOR_ITEM"
)
