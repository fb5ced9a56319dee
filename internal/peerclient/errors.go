package peerclient

import "fmt"

// NotFoundError indicates the peer responded 404 to a lookup or mutation
// that referenced an item or user id. The worker treats this as a
// terminal signal for stale item-path-cache entries.
type NotFoundError struct {
	Peer     string
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("peerclient: %s not found on %s", e.Resource, e.Peer)
}

// UnauthorizedError indicates the peer rejected the configured API key.
type UnauthorizedError struct {
	Peer string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("peerclient: %s rejected the configured api key", e.Peer)
}

// ServerError indicates the peer responded with a 5xx status.
type ServerError struct {
	Peer       string
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("peerclient: %s returned status %d", e.Peer, e.StatusCode)
}

// TransportError indicates the request never reached the peer, or its
// response could not be read or decoded.
type TransportError struct {
	Peer string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("peerclient: request to %s failed: %v", e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
