// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package main is the entry point for syncd, a bidirectional watch-state
sync bridge between Jellyfin/Emby media servers.

syncd receives a webhook notification from one peer, enqueues the
equivalent state change for every other configured peer in a durable
SQLite queue, and a background worker drains that queue on a fixed
interval, translating each queued event into the target peer's REST API
calls.

# Application Architecture

	RootSupervisor ("syncd")
	├── WorkerSupervisor ("worker-layer")
	│   └── Worker (queue tick loop)
	└── APISupervisor ("api-layer")
	    └── HTTP server (webhook intake + status API)

Component initialization order:

 1. Configuration: Koanf v2, layered env vars over an optional YAML file
 2. Logging: zerolog, JSON or console output
 3. Database: SQLite (durable queue, item path cache, user mappings,
    sync log), with stale PROCESSING rows reset at startup for crash
    recovery
 4. One peerclient.Client + peerclient.Resolver per configured peer
 5. Dispatcher (webhook intake logic) and Worker (tick loop)
 6. Supervisor tree: the Worker and the HTTP server as supervised
    services

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins): SYNCD_-prefixed environment variables over an optional
config.yaml over built-in defaults. See internal/config for the schema.

# Signal Handling

syncd handles graceful shutdown on SIGINT and SIGTERM: the supervisor
tree's context is cancelled, which stops the worker's tick loop between
events and gives the HTTP server up to its configured shutdown timeout
to finish in-flight requests before the process exits.

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/worker: Queue drain loop
  - internal/dispatcher: Webhook intake logic
*/
package main
