// Package eventparser converts an inbound webhook envelope into zero or
// more typed sync intents, honoring the configured feature flags and a
// per-item playback-progress debounce window. The parser is pure given
// its debounce state: the same envelope, feature flags and elapsed time
// always produce the same intents.
package eventparser
