// Package dispatcher turns one inbound webhook envelope into durable
// queue rows for every other configured peer: it resolves the source
// user mapping, enriches a missing item path, discards anything caught
// by the cooldown set, and persists one PENDING row per surviving
// intent per target peer. It also fans out user-lifecycle events
// (create/delete) synchronously, bypassing the durable queue entirely.
package dispatcher
