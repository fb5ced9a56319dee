package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/cooldown"
	"github.com/watchbridge/syncd/internal/eventparser"
	"github.com/watchbridge/syncd/internal/models"
	"github.com/watchbridge/syncd/internal/peerclient"
	"github.com/watchbridge/syncd/internal/store"
)

func testSetup(t *testing.T) (*Dispatcher, *store.DB) {
	t.Helper()
	db, err := store.New(&config.DatabaseConfig{Path: ":memory:", JournalMode: "MEMORY"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Servers: []config.PeerConfig{
			{Name: "lan", BaseURL: "http://lan.invalid", APIKey: "k"},
			{Name: "wan", BaseURL: "http://wan.invalid", APIKey: "k"},
		},
		Sync: config.SyncConfig{
			WatchedStatus:  true,
			Favorites:      true,
			MaxRetries:     5,
		},
	}

	resolvers := map[string]*peerclient.Resolver{
		"lan": peerclient.NewResolver(peerclient.New(cfg.Servers[0], 1000), db),
		"wan": peerclient.NewResolver(peerclient.New(cfg.Servers[1], 1000), db),
	}

	cd := cooldown.New(30 * time.Second)
	parser := eventparser.New(&cfg.Sync)
	return New(cfg, db, cd, parser, resolvers), db
}

func watchedEnvelope() *models.WebhookEnvelope {
	return &models.WebhookEnvelope{
		NotificationType:   "PlaybackStop",
		Username:           "alice",
		UserID:             "u1",
		ItemID:             "item1",
		ItemPath:           "/movies/a.mkv",
		PlayedToCompletion: true,
	}
}

func TestDispatch_EnqueuesForEveryOtherPeer(t *testing.T) {
	d, db := testSetup(t)

	n, err := d.Dispatch(context.Background(), "lan", watchedEnvelope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row enqueued (only 'wan' is not the source), got %d", n)
	}

	rows, err := db.ListByStatus(models.StatusPending, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].TargetPeer != "wan" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDispatch_DuplicateCallIsIdempotent(t *testing.T) {
	d, _ := testSetup(t)
	ctx := context.Background()

	if _, err := d.Dispatch(ctx, "lan", watchedEnvelope()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	n, err := d.Dispatch(ctx, "lan", watchedEnvelope())
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected second dispatch to enqueue nothing, got %d", n)
	}
}

func TestDispatch_CooldownSuppressesReturnEvent(t *testing.T) {
	d, _ := testSetup(t)
	d.cooldown.Mark("lan", "alice", "path:/movies/a.mkv", models.EventWatched)

	n, err := d.Dispatch(context.Background(), "lan", watchedEnvelope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cooldown to suppress the event, got %d enqueued", n)
	}
}

func TestDispatch_UpsertsSourceUserMapping(t *testing.T) {
	d, db := testSetup(t)

	if _, err := d.Dispatch(context.Background(), "lan", watchedEnvelope()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := db.GetUserMapping("alice", "lan")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if m == nil || m.PeerUserID != "u1" {
		t.Fatalf("expected mapping to u1, got %+v", m)
	}
}

func TestDispatch_UserCreated_CreatesOnOtherPeersWithRandomPassword(t *testing.T) {
	var gotPassword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPassword = body["Password"]
		_ = json.NewEncoder(w).Encode(map[string]string{"Id": "new-user", "Name": body["Name"]})
	}))
	defer srv.Close()

	db, err := store.New(&config.DatabaseConfig{Path: ":memory:", JournalMode: "MEMORY"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{Servers: []config.PeerConfig{
		{Name: "lan", BaseURL: "http://lan.invalid"},
		{Name: "wan", BaseURL: srv.URL},
	}}
	resolvers := map[string]*peerclient.Resolver{
		"wan": peerclient.NewResolver(peerclient.New(cfg.Servers[1], 1000), db),
	}
	d := New(cfg, db, cooldown.New(time.Minute), eventparser.New(&cfg.Sync), resolvers)

	n, err := d.Dispatch(context.Background(), "lan", &models.WebhookEnvelope{
		NotificationType: notificationUserCreated, Username: "bob",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("user lifecycle events do not enter the durable queue, got %d", n)
	}
	if gotPassword == "" {
		t.Fatal("expected a non-empty generated password for a non-passwordless peer")
	}
}

func TestDispatch_UserDeleted_NoMappingIsNoop(t *testing.T) {
	d, _ := testSetup(t)

	n, err := d.Dispatch(context.Background(), "lan", &models.WebhookEnvelope{
		NotificationType: notificationUserDeleted, Username: "nobody",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no-op, got %d", n)
	}
}
