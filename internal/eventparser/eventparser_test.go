package eventparser

import (
	"testing"
	"time"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/models"
)

func allFeaturesConfig() *config.SyncConfig {
	return &config.SyncConfig{
		PlaybackProgress:       true,
		WatchedStatus:          true,
		Favorites:              true,
		Ratings:                true,
		Likes:                  true,
		PlayCount:              true,
		LastPlayedDate:         true,
		AudioStream:            true,
		SubtitleStream:         true,
		ProgressDebounceSecond: 30,
	}
}

func ptrBool(b bool) *bool     { return &b }
func ptrInt(i int) *int       { return &i }
func ptrInt64(i int64) *int64 { return &i }

func TestParse_PlaybackStopCompleted_EmitsWatched(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType:   notificationPlaybackStop,
		Username:           "alice",
		ItemID:             "item1",
		PlayedToCompletion: true,
	}

	got := p.Parse(env, "lan", time.Unix(0, 0))
	if len(got) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(got))
	}
	if got[0].EventType != models.EventWatched || !got[0].Data.Played {
		t.Fatalf("unexpected intent: %+v", got[0])
	}
}

func TestParse_PlaybackStopIncomplete_EmitsNothing(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{NotificationType: notificationPlaybackStop, PlayedToCompletion: false}

	if got := p.Parse(env, "lan", time.Unix(0, 0)); len(got) != 0 {
		t.Fatalf("expected no intents, got %v", got)
	}
}

func TestParse_PlaybackStopDisabledFeature_EmitsNothing(t *testing.T) {
	cfg := allFeaturesConfig()
	cfg.WatchedStatus = false
	p := New(cfg)
	env := &models.WebhookEnvelope{NotificationType: notificationPlaybackStop, PlayedToCompletion: true}

	if got := p.Parse(env, "lan", time.Unix(0, 0)); len(got) != 0 {
		t.Fatalf("expected no intents, got %v", got)
	}
}

func TestParse_PlaybackProgress_EmitsProgress(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType:      notificationPlaybackProgress,
		Username:              "alice",
		ItemID:                "item1",
		PlaybackPositionTicks: ptrInt64(5_000_000),
	}

	got := p.Parse(env, "lan", time.Unix(0, 0))
	if len(got) != 1 || got[0].EventType != models.EventProgress || got[0].Data.PositionTicks != 5_000_000 {
		t.Fatalf("unexpected intents: %v", got)
	}
}

func TestParse_PlaybackProgress_ZeroTicksSkipped(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType:      notificationPlaybackProgress,
		ItemID:                "item1",
		PlaybackPositionTicks: ptrInt64(0),
	}

	if got := p.Parse(env, "lan", time.Unix(0, 0)); len(got) != 0 {
		t.Fatalf("expected no intents for zero ticks, got %v", got)
	}
}

func TestParse_PlaybackProgress_DebouncedWithinWindow(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType:      notificationPlaybackProgress,
		Username:              "alice",
		ItemID:                "item1",
		PlaybackPositionTicks: ptrInt64(1_000_000),
	}

	base := time.Unix(1000, 0)
	first := p.Parse(env, "lan", base)
	if len(first) != 1 {
		t.Fatalf("expected first progress event through, got %v", first)
	}

	second := p.Parse(env, "lan", base.Add(5*time.Second))
	if len(second) != 0 {
		t.Fatalf("expected second progress event to be debounced, got %v", second)
	}

	third := p.Parse(env, "lan", base.Add(31*time.Second))
	if len(third) != 1 {
		t.Fatalf("expected progress event past the window to pass, got %v", third)
	}
}

func TestParse_PlaybackProgress_DistinctItemsNotDebouncedTogether(t *testing.T) {
	p := New(allFeaturesConfig())
	base := time.Unix(1000, 0)

	env1 := &models.WebhookEnvelope{NotificationType: notificationPlaybackProgress, Username: "alice", ItemID: "item1", PlaybackPositionTicks: ptrInt64(1)}
	env2 := &models.WebhookEnvelope{NotificationType: notificationPlaybackProgress, Username: "alice", ItemID: "item2", PlaybackPositionTicks: ptrInt64(1)}

	if got := p.Parse(env1, "lan", base); len(got) != 1 {
		t.Fatalf("expected item1 event through, got %v", got)
	}
	if got := p.Parse(env2, "lan", base); len(got) != 1 {
		t.Fatalf("expected item2 event through despite same timestamp, got %v", got)
	}
}

func TestParse_UserDataSaved_ImportSkipsEverything(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType: notificationUserDataSaved,
		Played:           true,
		IsFavorite:       true,
		Likes:            ptrBool(true),
		SaveReason:       "import",
	}

	if got := p.Parse(env, "lan", time.Unix(0, 0)); len(got) != 0 {
		t.Fatalf("expected import save to be fully skipped, got %v", got)
	}
}

func TestParse_UserDataSaved_EmitsOneRecordPerEnabledPresentField(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType:    notificationUserDataSaved,
		Played:              true,
		IsFavorite:          false,
		Likes:               ptrBool(true),
		PlayCount:           ptrInt64(3),
		LastPlayedDate:      "2026-07-30T00:00:00Z",
		AudioStreamIndex:    ptrInt(2),
		SubtitleStreamIndex: ptrInt(1),
	}

	got := p.Parse(env, "lan", time.Unix(0, 0))

	byType := map[models.EventType]models.SyncIntent{}
	for _, in := range got {
		byType[in.EventType] = in
	}

	wantTypes := []models.EventType{
		models.EventWatched, models.EventFavorite, models.EventLikes,
		models.EventPlayCount, models.EventLastPlayed, models.EventAudioStream,
		models.EventSubtitleStream,
	}
	if len(got) != len(wantTypes) {
		t.Fatalf("expected %d intents, got %d: %v", len(wantTypes), len(got), got)
	}
	for _, want := range wantTypes {
		if _, ok := byType[want]; !ok {
			t.Fatalf("missing expected intent type %s", want)
		}
	}

	if !byType[models.EventWatched].Data.Played {
		t.Fatal("expected WATCHED.Played true")
	}
	if byType[models.EventFavorite].Data.IsFavorite {
		t.Fatal("expected FAVORITE.IsFavorite false")
	}
	if byType[models.EventPlayCount].Data.PlayCount != 3 {
		t.Fatal("expected PLAY_COUNT of 3")
	}
}

func TestParse_UserDataSaved_OptionalFieldsAbsentAreSkipped(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType: notificationUserDataSaved,
		Played:           true,
		IsFavorite:       true,
	}

	got := p.Parse(env, "lan", time.Unix(0, 0))
	for _, in := range got {
		switch in.EventType {
		case models.EventLikes, models.EventPlayCount, models.EventLastPlayed,
			models.EventAudioStream, models.EventSubtitleStream:
			t.Fatalf("did not expect %s when field absent", in.EventType)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected only WATCHED and FAVORITE, got %v", got)
	}
}

func TestParse_UserDataSaved_DisabledFeatureSuppressed(t *testing.T) {
	cfg := allFeaturesConfig()
	cfg.Likes = false
	p := New(cfg)
	env := &models.WebhookEnvelope{
		NotificationType: notificationUserDataSaved,
		Likes:            ptrBool(true),
	}

	got := p.Parse(env, "lan", time.Unix(0, 0))
	for _, in := range got {
		if in.EventType == models.EventLikes {
			t.Fatal("expected LIKES to be suppressed by disabled feature flag")
		}
	}
}

func TestParse_UnknownNotification_EmitsNothing(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{NotificationType: "SessionEnded"}

	if got := p.Parse(env, "lan", time.Unix(0, 0)); len(got) != 0 {
		t.Fatalf("expected no intents for unrecognized notification, got %v", got)
	}
}

func TestParse_IntentCarriesIdentityFields(t *testing.T) {
	p := New(allFeaturesConfig())
	env := &models.WebhookEnvelope{
		NotificationType:   notificationPlaybackStop,
		Username:           "Alice",
		UserID:             "u1",
		ItemID:             "item1",
		ItemName:           "Movie",
		ItemPath:           "/movies/a.mkv",
		ProviderImdb:       "tt123",
		PlayedToCompletion: true,
	}

	got := p.Parse(env, "lan", time.Unix(0, 0))
	if len(got) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(got))
	}
	in := got[0]
	if in.SourcePeer != "lan" || in.Username != "Alice" || in.SourceUserID != "u1" ||
		in.SourceItemID != "item1" || in.ItemName != "Movie" || in.ItemPath != "/movies/a.mkv" ||
		in.ProviderImdb != "tt123" {
		t.Fatalf("unexpected identity fields: %+v", in)
	}
	if in.IdentityKey() != "path:/movies/a.mkv" {
		t.Fatalf("unexpected identity key: %s", in.IdentityKey())
	}
}

func TestDebouncer_AllowThenBlockThenAllowAfterWindow(t *testing.T) {
	d := NewDebouncer(10 * time.Second)
	base := time.Unix(100, 0)

	if !d.Allow("lan", "alice", "item1", base) {
		t.Fatal("expected first call to be allowed")
	}
	if d.Allow("lan", "alice", "item1", base.Add(5*time.Second)) {
		t.Fatal("expected call within window to be blocked")
	}
	if !d.Allow("lan", "alice", "item1", base.Add(11*time.Second)) {
		t.Fatal("expected call past window to be allowed")
	}
}
