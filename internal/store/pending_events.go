package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/watchbridge/syncd/internal/models"
)

// ErrDuplicatePending is returned by Enqueue when a non-terminal row
// already exists for the event's dedup key.
var ErrDuplicatePending = errors.New("store: duplicate pending event")

// maxBackoffSeconds caps the exponential retry delay (§3).
const maxBackoffSeconds = 300

// Enqueue persists a new PENDING row. If a non-terminal row already
// shares the event's dedup key, it returns ErrDuplicatePending and
// inserts nothing — enqueue is idempotent under that key.
func (db *DB) Enqueue(ev *models.PendingEvent) (int64, error) {
	now := nowUnix()
	res, err := db.conn.Exec(`
		INSERT INTO pending_events (
			event_type, source_peer, target_peer, username, source_user_id,
			source_item_id, item_name, item_path,
			provider_imdb, provider_tmdb, provider_tvdb,
			event_data, status, retry_count, max_retries,
			item_not_found_count, item_not_found_max,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		string(ev.EventType), ev.SourcePeer, ev.TargetPeer, ev.Username, ev.SourceUserID,
		ev.SourceItemID, ev.ItemName, ev.ItemPath,
		ev.ProviderImdb, ev.ProviderTmdb, ev.ProviderTvdb,
		ev.EventData, string(models.StatusPending), 0, ev.MaxRetries,
		0, ev.ItemNotFoundMax,
		now, now,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, ErrDuplicatePending
		}
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return res.LastInsertId()
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

// ClaimPending returns up to limit PENDING rows whose next_retry_at has
// passed (or is unset), FIFO on created_at, atomically transitioning
// each to PROCESSING before returning.
func (db *DB) ClaimPending(limit int) ([]*models.PendingEvent, error) {
	return db.claim(string(models.StatusPending), limit)
}

// ClaimWaiting is ClaimPending for WAITING_FOR_ITEM rows.
func (db *DB) ClaimWaiting(limit int) ([]*models.PendingEvent, error) {
	return db.claim(string(models.StatusWaitingForItem), limit)
}

func (db *DB) claim(status string, limit int) ([]*models.PendingEvent, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	now := nowUnix()
	rows, err := tx.Query(`
		SELECT id FROM pending_events
		WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?`, status, now, limit)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	claimed := make([]*models.PendingEvent, 0, len(ids))
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE pending_events SET status = ?, updated_at = ? WHERE id = ?`,
			string(models.StatusProcessing), now, id); err != nil {
			return nil, err
		}
		ev, err := scanPendingEventTx(tx, id)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, ev)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

func scanPendingEventTx(tx *sql.Tx, id int64) (*models.PendingEvent, error) {
	row := tx.QueryRow(pendingSelectCols+` WHERE id = ?`, id)
	return scanPendingEventRow(row)
}

const pendingSelectCols = `
	SELECT id, event_type, source_peer, target_peer, username, source_user_id,
		source_item_id, item_name, item_path, provider_imdb, provider_tmdb, provider_tvdb,
		event_data, status, retry_count, max_retries, last_error,
		item_not_found_count, item_not_found_max, created_at, updated_at, next_retry_at
	FROM pending_events`

func scanPendingEventRow(row *sql.Row) (*models.PendingEvent, error) {
	var ev models.PendingEvent
	var eventType, status string
	var nextRetryAt sql.NullInt64
	err := row.Scan(&ev.ID, &eventType, &ev.SourcePeer, &ev.TargetPeer, &ev.Username, &ev.SourceUserID,
		&ev.SourceItemID, &ev.ItemName, &ev.ItemPath, &ev.ProviderImdb, &ev.ProviderTmdb, &ev.ProviderTvdb,
		&ev.EventData, &status, &ev.RetryCount, &ev.MaxRetries, &ev.LastError,
		&ev.ItemNotFoundCount, &ev.ItemNotFoundMax, &ev.CreatedAt, &ev.UpdatedAt, &nextRetryAt)
	if err != nil {
		return nil, err
	}
	ev.EventType = models.EventType(eventType)
	ev.Status = models.PendingStatus(status)
	if nextRetryAt.Valid {
		ev.NextRetryAt = &nextRetryAt.Int64
	}
	return &ev, nil
}

// Complete deletes a row on success and appends a success record to the
// sync log.
func (db *DB) Complete(ev *models.PendingEvent, syncedValue string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM pending_events WHERE id = ?`, ev.ID); err != nil {
		return err
	}
	if err := insertSyncLogTx(tx, ev, true, syncedValue, "ok"); err != nil {
		return err
	}
	return tx.Commit()
}

// Fail increments retry_count; once it reaches MaxRetries the row is
// deleted and a failure is logged, otherwise it is returned to PENDING
// with exponential backoff capped at 300s.
func (db *DB) Fail(ev *models.PendingEvent, errMsg string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	retryCount := ev.RetryCount + 1
	if retryCount >= ev.MaxRetries {
		if _, err := tx.Exec(`DELETE FROM pending_events WHERE id = ?`, ev.ID); err != nil {
			return err
		}
		if err := insertSyncLogTx(tx, ev, false, "", fmt.Sprintf("permanent failure after %d attempts: %s", retryCount, errMsg)); err != nil {
			return err
		}
		return tx.Commit()
	}

	delay := backoffSeconds(retryCount)
	nextRetryAt := nowUnix() + delay
	if _, err := tx.Exec(`
		UPDATE pending_events
		SET status = ?, retry_count = ?, last_error = ?, next_retry_at = ?, updated_at = ?
		WHERE id = ?`,
		string(models.StatusPending), retryCount, errMsg, nextRetryAt, nowUnix(), ev.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// backoffSeconds implements min(300, 10*2^retryCount) (§3).
func backoffSeconds(retryCount int) int64 {
	delay := int64(10)
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= maxBackoffSeconds {
			return maxBackoffSeconds
		}
	}
	if delay > maxBackoffSeconds {
		return maxBackoffSeconds
	}
	return delay
}

// MarkWaitingForItem moves a row to WAITING_FOR_ITEM after the target
// peer reported the item absent, per the path policy's retry schedule.
// This does not consume a general retry attempt.
func (db *DB) MarkWaitingForItem(ev *models.PendingEvent, maxAttempts int, delaySeconds int, errMsg string) error {
	nextRetryAt := nowUnix() + int64(delaySeconds)
	_, err := db.conn.Exec(`
		UPDATE pending_events
		SET status = ?, item_not_found_count = item_not_found_count + 1,
			item_not_found_max = ?, last_error = ?, next_retry_at = ?, updated_at = ?
		WHERE id = ?`,
		string(models.StatusWaitingForItem), maxAttempts, errMsg, nextRetryAt, nowUnix(), ev.ID)
	return err
}

// PermanentlyFail deletes a row and logs a failure without touching
// retry_count — used when the path policy denies further waiting.
func (db *DB) PermanentlyFail(ev *models.PendingEvent, reason string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM pending_events WHERE id = ?`, ev.ID); err != nil {
		return err
	}
	if err := insertSyncLogTx(tx, ev, false, "", reason); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetStaleProcessing demotes PROCESSING rows older than olderThan
// seconds back to PENDING. Called every worker tick.
func (db *DB) ResetStaleProcessing(olderThanSeconds int64) (int64, error) {
	cutoff := nowUnix() - olderThanSeconds
	res, err := db.conn.Exec(`
		UPDATE pending_events SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?`,
		string(models.StatusPending), nowUnix(), string(models.StatusProcessing), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetAllProcessing demotes every PROCESSING row back to PENDING. Called
// once at startup for crash recovery.
func (db *DB) ResetAllProcessing() (int64, error) {
	res, err := db.conn.Exec(`
		UPDATE pending_events SET status = ?, updated_at = ? WHERE status = ?`,
		string(models.StatusPending), nowUnix(), string(models.StatusProcessing))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of rows in each status, for the
// status API's queue-depth rollup.
func (db *DB) CountByStatus() (map[models.PendingStatus]int64, error) {
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM pending_events GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PendingStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.PendingStatus(status)] = n
	}
	return counts, rows.Err()
}

// ListByStatus returns a page of rows in the given status, newest first,
// for the status API's paginated views.
func (db *DB) ListByStatus(status models.PendingStatus, limit, offset int) ([]*models.PendingEvent, error) {
	rows, err := db.conn.Query(pendingSelectCols+`
		WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.PendingEvent
	for rows.Next() {
		ev, err := scanPendingEventRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanPendingEventRows(rows *sql.Rows) (*models.PendingEvent, error) {
	var ev models.PendingEvent
	var eventType, status string
	var nextRetryAt sql.NullInt64
	err := rows.Scan(&ev.ID, &eventType, &ev.SourcePeer, &ev.TargetPeer, &ev.Username, &ev.SourceUserID,
		&ev.SourceItemID, &ev.ItemName, &ev.ItemPath, &ev.ProviderImdb, &ev.ProviderTmdb, &ev.ProviderTvdb,
		&ev.EventData, &status, &ev.RetryCount, &ev.MaxRetries, &ev.LastError,
		&ev.ItemNotFoundCount, &ev.ItemNotFoundMax, &ev.CreatedAt, &ev.UpdatedAt, &nextRetryAt)
	if err != nil {
		return nil, err
	}
	ev.EventType = models.EventType(eventType)
	ev.Status = models.PendingStatus(status)
	if nextRetryAt.Valid {
		ev.NextRetryAt = &nextRetryAt.Int64
	}
	return &ev, nil
}

// RetryEvent backs POST /events/{id}/retry. Permanent failures are
// deleted from pending_events (§4.2), so a retry reconstructs the event
// from its sync_log record and re-enqueues it as a fresh PENDING row.
func (db *DB) RetryEvent(syncLogID int64) (int64, error) {
	row := db.conn.QueryRow(`
		SELECT event_type, source_peer, target_peer, username, source_user_id,
			source_item_id, item_name, item_path, provider_imdb, provider_tmdb,
			provider_tvdb, event_data, success
		FROM sync_log WHERE id = ?`, syncLogID)

	var eventType string
	var ev models.PendingEvent
	var success bool
	if err := row.Scan(&eventType, &ev.SourcePeer, &ev.TargetPeer, &ev.Username, &ev.SourceUserID,
		&ev.SourceItemID, &ev.ItemName, &ev.ItemPath, &ev.ProviderImdb, &ev.ProviderTmdb,
		&ev.ProviderTvdb, &ev.EventData, &success); err != nil {
		return 0, fmt.Errorf("retry lookup: %w", err)
	}
	if success {
		return 0, fmt.Errorf("retry: sync log entry %d was a success, nothing to retry", syncLogID)
	}

	ev.EventType = models.EventType(eventType)
	ev.MaxRetries = 5
	return db.Enqueue(&ev)
}

func insertSyncLogTx(tx *sql.Tx, ev *models.PendingEvent, success bool, syncedValue, message string) error {
	_, err := tx.Exec(`
		INSERT INTO sync_log (
			event_type, source_peer, target_peer, username, source_user_id, source_item_id,
			item_name, item_path, provider_imdb, provider_tmdb, provider_tvdb, event_data,
			synced_value, success, message, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		string(ev.EventType), ev.SourcePeer, ev.TargetPeer, ev.Username, ev.SourceUserID, ev.SourceItemID,
		ev.ItemName, ev.ItemPath, ev.ProviderImdb, ev.ProviderTmdb, ev.ProviderTvdb, ev.EventData,
		syncedValue, success, message, nowUnix())
	return err
}
