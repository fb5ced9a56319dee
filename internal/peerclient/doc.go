// Package peerclient implements the REST client used to talk to one
// other media-server peer: user lookup/creation, item lookup by path or
// provider id, and the state mutations (playback progress, watched,
// favorite, rating, likes, play count, last played, stream indices).
//
// Every outbound call is wrapped in a per-peer sony/gobreaker/v2 circuit
// breaker and a token-bucket rate limiter, so one unreachable peer can
// neither cascade failures into the worker's tick loop nor flood a
// recovering peer with a burst of queued retries.
package peerclient
