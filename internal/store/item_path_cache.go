package store

import (
	"database/sql"
	"errors"

	"github.com/watchbridge/syncd/internal/models"
)

// GetItemPath looks up a cached peer item id for path. A hit may be
// stale; the caller is responsible for invalidating on a not-found
// response from a subsequent mutation.
func (db *DB) GetItemPath(peerName, path string) (*models.ItemPathCacheEntry, error) {
	row := db.conn.QueryRow(`
		SELECT peer_name, item_path, peer_item_id, item_name, updated_at
		FROM item_path_cache WHERE peer_name = ? AND item_path = ?`, peerName, path)

	var e models.ItemPathCacheEntry
	err := row.Scan(&e.PeerName, &e.ItemPath, &e.PeerItemID, &e.ItemName, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutItemPath inserts or refreshes a single cache entry.
func (db *DB) PutItemPath(peerName, path, itemID, itemName string) error {
	_, err := db.conn.Exec(`
		INSERT INTO item_path_cache (peer_name, item_path, peer_item_id, item_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(peer_name, item_path) DO UPDATE SET
			peer_item_id = excluded.peer_item_id,
			item_name = excluded.item_name,
			updated_at = excluded.updated_at`,
		peerName, path, itemID, itemName, nowUnix())
	return err
}

// PutItemPathBatch inserts or refreshes many entries in one transaction,
// used by the full-library refresh in the peer client's cache-miss path.
func (db *DB) PutItemPathBatch(peerName string, entries []models.ItemPathCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO item_path_cache (peer_name, item_path, peer_item_id, item_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(peer_name, item_path) DO UPDATE SET
			peer_item_id = excluded.peer_item_id,
			item_name = excluded.item_name,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := nowUnix()
	for _, e := range entries {
		if _, err := stmt.Exec(peerName, e.ItemPath, e.PeerItemID, e.ItemName, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InvalidateItemPath removes a single cache entry, called when a
// mutation 404s on a cached id.
func (db *DB) InvalidateItemPath(peerName, path string) error {
	_, err := db.conn.Exec(`DELETE FROM item_path_cache WHERE peer_name = ? AND item_path = ?`, peerName, path)
	return err
}

// InvalidatePeer clears every cache entry for a peer, e.g. after a full
// library resync is requested.
func (db *DB) InvalidatePeer(peerName string) error {
	_, err := db.conn.Exec(`DELETE FROM item_path_cache WHERE peer_name = ?`, peerName)
	return err
}
