package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/watchbridge/syncd/internal/models"
)

// GetUserMapping looks up a peer's opaque user id for username, matched
// case-insensitively. Returns nil, nil when no mapping exists.
func (db *DB) GetUserMapping(username, peerName string) (*models.UserMapping, error) {
	row := db.conn.QueryRow(`
		SELECT id, username_lower, peer_name, peer_user_id, created_at, updated_at
		FROM user_mappings WHERE username_lower = ? AND peer_name = ?`,
		strings.ToLower(username), peerName)

	var m models.UserMapping
	err := row.Scan(&m.ID, &m.UsernameLower, &m.PeerName, &m.PeerUserID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertUserMapping creates or updates the (username, peer) mapping,
// racing safely against concurrent callers via the unique constraint.
func (db *DB) UpsertUserMapping(username, peerName, peerUserID string) error {
	now := nowUnix()
	_, err := db.conn.Exec(`
		INSERT INTO user_mappings (username_lower, peer_name, peer_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username_lower, peer_name) DO UPDATE SET
			peer_user_id = excluded.peer_user_id,
			updated_at = excluded.updated_at`,
		strings.ToLower(username), peerName, peerUserID, now, now)
	return err
}

// DeleteUserMapping removes the (username, peer) mapping, e.g. after a
// user-lifecycle delete fan-out.
func (db *DB) DeleteUserMapping(username, peerName string) error {
	_, err := db.conn.Exec(`DELETE FROM user_mappings WHERE username_lower = ? AND peer_name = ?`,
		strings.ToLower(username), peerName)
	return err
}

// ListMappingsForUsername returns every peer mapping known for username.
func (db *DB) ListMappingsForUsername(username string) ([]*models.UserMapping, error) {
	rows, err := db.conn.Query(`
		SELECT id, username_lower, peer_name, peer_user_id, created_at, updated_at
		FROM user_mappings WHERE username_lower = ?`, strings.ToLower(username))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.UserMapping
	for rows.Next() {
		var m models.UserMapping
		if err := rows.Scan(&m.ID, &m.UsernameLower, &m.PeerName, &m.PeerUserID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
