package store

// createSchema creates the four tables backing the pipeline, if absent.
// All columns are declared up front; this project has no released schema
// to migrate from, so there is no migrations.go yet.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user_mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username_lower TEXT NOT NULL,
		peer_name TEXT NOT NULL,
		peer_user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(username_lower, peer_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_mappings_username ON user_mappings(username_lower)`,

	`CREATE TABLE IF NOT EXISTS item_path_cache (
		peer_name TEXT NOT NULL,
		item_path TEXT NOT NULL,
		peer_item_id TEXT NOT NULL,
		item_name TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (peer_name, item_path)
	)`,

	`CREATE TABLE IF NOT EXISTS pending_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		source_peer TEXT NOT NULL,
		target_peer TEXT NOT NULL,
		username TEXT NOT NULL,
		source_user_id TEXT NOT NULL,
		source_item_id TEXT NOT NULL,
		item_name TEXT NOT NULL DEFAULT '',
		item_path TEXT NOT NULL DEFAULT '',
		provider_imdb TEXT NOT NULL DEFAULT '',
		provider_tmdb TEXT NOT NULL DEFAULT '',
		provider_tvdb TEXT NOT NULL DEFAULT '',
		event_data TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'PENDING',
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 5,
		last_error TEXT NOT NULL DEFAULT '',
		item_not_found_count INTEGER NOT NULL DEFAULT 0,
		item_not_found_max INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		next_retry_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_status_retry ON pending_events(status, next_retry_at)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_dedup
		ON pending_events(event_type, target_peer, username, source_item_id)
		WHERE status IN ('PENDING', 'PROCESSING', 'WAITING_FOR_ITEM')`,

	`CREATE TABLE IF NOT EXISTS sync_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		source_peer TEXT NOT NULL,
		target_peer TEXT NOT NULL,
		username TEXT NOT NULL,
		source_user_id TEXT NOT NULL DEFAULT '',
		source_item_id TEXT NOT NULL DEFAULT '',
		item_name TEXT NOT NULL DEFAULT '',
		item_path TEXT NOT NULL DEFAULT '',
		provider_imdb TEXT NOT NULL DEFAULT '',
		provider_tmdb TEXT NOT NULL DEFAULT '',
		provider_tvdb TEXT NOT NULL DEFAULT '',
		event_data TEXT NOT NULL DEFAULT '{}',
		synced_value TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_log_created ON sync_log(created_at)`,
}
