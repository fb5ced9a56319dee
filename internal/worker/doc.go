// Package worker runs the tick loop that drains the durable queue: it
// claims PENDING and WAITING_FOR_ITEM batches, resolves each event's
// target user and item on the destination peer, skips no-op writes via
// the smart-sync comparison, executes the mutation, and transitions the
// row to success, retry, waiting, or permanent failure.
package worker
