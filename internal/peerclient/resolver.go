package peerclient

import (
	"context"
	"sync"

	"github.com/watchbridge/syncd/internal/models"
	"github.com/watchbridge/syncd/internal/store"
)

// Resolver wraps a Client with the Item Path Cache lookup algorithm: a
// cache hit is verified against the peer before being trusted, and a
// cache miss triggers a single full-library refresh shared by every
// concurrent caller for this peer.
type Resolver struct {
	client *Client
	db     *store.DB

	refreshMu sync.Mutex

	adminMu sync.Mutex
	adminID string
}

// NewResolver builds a Resolver for one peer's client over the shared
// durable store.
func NewResolver(client *Client, db *store.DB) *Resolver {
	return &Resolver{client: client, db: db}
}

// Name returns the underlying peer's name.
func (r *Resolver) Name() string { return r.client.Name() }

// Client returns the underlying REST client, for callers that need raw
// mutation methods the resolver does not wrap.
func (r *Resolver) Client() *Client { return r.client }

// ItemByPath implements the cache-then-verify-then-refresh algorithm
// (§4.1): a cache hit is confirmed live via GetItemInfo; a stale hit
// invalidates the entry and falls through to a refresh. Only one
// goroutine per peer performs the actual library page walk; concurrent
// callers block on refreshMu and then re-check the cache.
func (r *Resolver) ItemByPath(ctx context.Context, adminUserID, path string) (*Item, error) {
	if entry, err := r.db.GetItemPath(r.Name(), path); err != nil {
		return nil, err
	} else if entry != nil {
		item, err := r.client.GetItemInfo(ctx, adminUserID, entry.PeerItemID)
		if err == nil {
			return item, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
		if invErr := r.db.InvalidateItemPath(r.Name(), path); invErr != nil {
			return nil, invErr
		}
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// Re-check: another caller may have refreshed while we waited.
	if entry, err := r.db.GetItemPath(r.Name(), path); err != nil {
		return nil, err
	} else if entry != nil {
		return &Item{ID: entry.PeerItemID, Name: entry.ItemName, Path: entry.ItemPath}, nil
	}

	if err := r.refreshLibrary(ctx, adminUserID); err != nil {
		return nil, err
	}

	entry, err := r.db.GetItemPath(r.Name(), path)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &Item{ID: entry.PeerItemID, Name: entry.ItemName, Path: entry.ItemPath}, nil
}

// refreshLibrary walks the peer's full library, paging at 500 items,
// and batch-inserts every entry into the cache in one transaction per
// page. Caller must hold refreshMu.
func (r *Resolver) refreshLibrary(ctx context.Context, adminUserID string) error {
	start := 0
	for {
		page, err := r.client.ListLibraryPage(ctx, adminUserID, start)
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			return nil
		}

		entries := make([]models.ItemPathCacheEntry, 0, len(page.Items))
		for _, item := range page.Items {
			if item.Path == "" {
				continue
			}
			entries = append(entries, models.ItemPathCacheEntry{
				PeerName: r.Name(), ItemPath: item.Path, PeerItemID: item.ID, ItemName: item.Name,
			})
		}
		if err := r.db.PutItemPathBatch(r.Name(), entries); err != nil {
			return err
		}

		start += len(page.Items)
		if start >= page.TotalCount || len(page.Items) < libraryPageSize {
			return nil
		}
	}
}

// ItemByProviderID resolves an item by external provider id, bypassing
// the path cache entirely — provider lookups are cheap, single-request
// peer-side searches with no local cache to maintain.
func (r *Resolver) ItemByProviderID(ctx context.Context, userID, imdb, tmdb, tvdb string) (*Item, error) {
	return r.client.FindItemByProviderID(ctx, userID, imdb, tmdb, tvdb)
}

// AdminUserID returns a cached administrator user id for this peer,
// fetching and caching it on first use.
func (r *Resolver) AdminUserID(ctx context.Context) (string, error) {
	r.adminMu.Lock()
	defer r.adminMu.Unlock()

	if r.adminID != "" {
		return r.adminID, nil
	}
	id, err := r.client.GetAdminUserID(ctx)
	if err != nil {
		return "", err
	}
	r.adminID = id
	return id, nil
}

func isNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
