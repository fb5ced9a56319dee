// Package store is the durable backing for the sync pipeline: the
// write-ahead pending event queue, the user mapping table, the item path
// cache, and the append-only sync log. It is backed by SQLite via the
// pure-Go modernc.org/sqlite driver, so the binary has no cgo dependency.
package store
