// Package models defines the data types shared across syncd: the inbound
// webhook envelope, the durable queue record, user and item identity
// mappings, and the append-only sync log entry.
package models
