package store

import (
	"database/sql"

	"github.com/watchbridge/syncd/internal/models"
)

// LogEvent appends a standalone Sync Log entry outside the durable
// queue's claim/complete/fail lifecycle, used by callers (the
// user-lifecycle fan-out) that mutate peers synchronously and only need
// an audit trail, never a retryable row.
func (db *DB) LogEvent(ev *models.PendingEvent, success bool, syncedValue, message string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertSyncLogTx(tx, ev, success, syncedValue, message); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSyncLog returns a page of sync log entries, newest first.
func (db *DB) ListSyncLog(limit, offset int) ([]*models.SyncLogEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, event_type, source_peer, target_peer, username, source_item_id,
			item_name, synced_value, success, message, created_at
		FROM sync_log ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		var eventType string
		if err := rows.Scan(&e.ID, &eventType, &e.SourcePeer, &e.TargetPeer, &e.Username, &e.SourceItemID,
			&e.ItemName, &e.SyncedValue, &e.Success, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EventType = models.EventType(eventType)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SyncStats summarizes the audit log for the status API.
type SyncStats struct {
	Total      int64
	Successful int64
	Failed     int64
	LastSyncAt int64
}

// GetSyncStats aggregates total/successful/failed counts and the most
// recent entry's timestamp.
func (db *DB) GetSyncStats() (*SyncStats, error) {
	var s SyncStats
	var successful, failed sql.NullInt64
	row := db.conn.QueryRow(`
		SELECT COUNT(*),
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
			COALESCE(MAX(created_at), 0)
		FROM sync_log`)
	if err := row.Scan(&s.Total, &successful, &failed, &s.LastSyncAt); err != nil {
		return nil, err
	}
	s.Successful = successful.Int64
	s.Failed = failed.Int64
	return &s, nil
}
