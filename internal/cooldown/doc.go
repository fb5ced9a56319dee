// Package cooldown implements the sole sync-loop suppression mechanism:
// a short-lived, in-memory record of (target peer, username, item
// identity, event type) tuples the worker has just written successfully,
// so a mirrored webhook bouncing back from that peer is dropped instead
// of re-enqueued.
package cooldown
