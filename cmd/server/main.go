// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/watchbridge/syncd/internal/api"
	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/cooldown"
	"github.com/watchbridge/syncd/internal/dispatcher"
	"github.com/watchbridge/syncd/internal/eventparser"
	"github.com/watchbridge/syncd/internal/logging"
	"github.com/watchbridge/syncd/internal/peerclient"
	"github.com/watchbridge/syncd/internal/store"
	"github.com/watchbridge/syncd/internal/supervisor"
	"github.com/watchbridge/syncd/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logging.Init(logCfg)

	logging.Info().Int("peers", len(cfg.Servers)).Msg("starting syncd")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	if n, err := db.ResetAllProcessing(); err != nil {
		logging.Warn().Err(err).Msg("failed to reset stale processing rows")
	} else if n > 0 {
		logging.Warn().Int64("count", n).Msg("reset processing rows left over from a previous run")
	}

	resolvers := make(map[string]*peerclient.Resolver, len(cfg.Servers))
	for _, peer := range cfg.Servers {
		client := peerclient.New(peer, 10)
		resolvers[peer.Name] = peerclient.NewResolver(client, db)
		logging.Info().Str("peer", peer.Name).Str("url", peer.BaseURL).Msg("peer configured")
	}

	cd := cooldown.New(time.Duration(cfg.Sync.CooldownSeconds) * time.Second)
	parser := eventparser.New(&cfg.Sync)

	disp := dispatcher.New(cfg, db, cd, parser, resolvers)
	w := worker.New(cfg, db, cd, resolvers)

	router := api.NewRouter(cfg, db, disp, resolvers)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddWorkerService(supervisor.NewWorkerService(w))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("http server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("syncd stopped gracefully")
}
