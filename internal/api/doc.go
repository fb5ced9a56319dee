// Package api exposes the two HTTP surfaces of the sync bridge: the
// inbound webhook intake (POST /webhook/{peer_name}) that feeds the
// dispatcher, and a read-only status API for queue depth, peer
// reachability, sync history, and manual retry of a failed event.
package api
