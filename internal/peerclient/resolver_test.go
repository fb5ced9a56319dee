package peerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/store"
)

func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	db, err := store.New(&config.DatabaseConfig{Path: ":memory:", JournalMode: "MEMORY"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := New(config.PeerConfig{Name: "test-peer", BaseURL: srv.URL, APIKey: "key"}, 1000)
	return NewResolver(client, db), srv
}

func TestItemByPath_CacheMissTriggersRefreshThenHits(t *testing.T) {
	calls := 0
	r, srv := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(struct {
			Items      []jfItem `json:"Items"`
			TotalCount int      `json:"TotalRecordCount"`
		}{
			Items:      []jfItem{{ID: "item1", Name: "Movie", Path: "/movies/a.mkv"}},
			TotalCount: 1,
		})
	})
	defer srv.Close()

	item, err := r.ItemByPath(context.Background(), "admin1", "/movies/a.mkv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item == nil || item.ID != "item1" {
		t.Fatalf("expected item1, got %+v", item)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one library page request, got %d", calls)
	}
}

func TestItemByPath_CacheMissAndNoMatchReturnsNil(t *testing.T) {
	r, srv := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			Items      []jfItem `json:"Items"`
			TotalCount int      `json:"TotalRecordCount"`
		}{Items: nil, TotalCount: 0})
	})
	defer srv.Close()

	item, err := r.ItemByPath(context.Background(), "admin1", "/movies/missing.mkv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil item, got %+v", item)
	}
}

func TestItemByPath_SecondLookupUsesCacheWithoutRefresh(t *testing.T) {
	refreshCalls := 0
	r, srv := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/Items":
			refreshCalls++
			_ = json.NewEncoder(w).Encode(struct {
				Items      []jfItem `json:"Items"`
				TotalCount int      `json:"TotalRecordCount"`
			}{
				Items:      []jfItem{{ID: "item1", Name: "Movie", Path: "/movies/a.mkv"}},
				TotalCount: 1,
			})
		default:
			_ = json.NewEncoder(w).Encode(jfItem{ID: "item1", Name: "Movie", Path: "/movies/a.mkv"})
		}
	})
	defer srv.Close()

	if _, err := r.ItemByPath(context.Background(), "admin1", "/movies/a.mkv"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if _, err := r.ItemByPath(context.Background(), "admin1", "/movies/a.mkv"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if refreshCalls != 1 {
		t.Fatalf("expected cache hit to avoid a second refresh, got %d refresh calls", refreshCalls)
	}
}

func TestAdminUserID_CachesAcrossCalls(t *testing.T) {
	calls := 0
	r, srv := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]jfUser{{ID: "admin1", Name: "root", Policy: struct {
			IsAdministrator bool `json:"IsAdministrator"`
		}{IsAdministrator: true}}})
	})
	defer srv.Close()

	id1, err := r.AdminUserID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id2, err := r.AdminUserID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != "admin1" || id2 != "admin1" {
		t.Fatalf("unexpected admin ids: %s, %s", id1, id2)
	}
	if calls != 1 {
		t.Fatalf("expected admin id to be cached after first call, got %d calls", calls)
	}
}
