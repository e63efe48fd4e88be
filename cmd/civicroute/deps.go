package main

import (
	"context"
	"fmt"

	"github.com/civicmaps/civicroute/internal/cache"
	"github.com/civicmaps/civicroute/internal/config"
	"github.com/civicmaps/civicroute/internal/graphstore"
	"github.com/civicmaps/civicroute/internal/ingest"
	"github.com/civicmaps/civicroute/internal/issues"
)

// newGraphStore connects to Neo4j and ensures the road-graph schema.
func newGraphStore(ctx context.Context, cfg *config.Config) (*graphstore.Client, *graphstore.Store, error) {
	client, err := graphstore.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return nil, nil, err
	}
	store, err := graphstore.NewStore(ctx, client)
	if err != nil {
		client.Close(ctx)
		return nil, nil, err
	}
	return client, store, nil
}

// newCacheService connects to Redis, falling back to the in-process
// cache when Redis is unreachable. The grid cache degrades further to
// direct store queries on its own, so this never blocks startup.
func newCacheService(ctx context.Context, cfg *config.Config) cache.Service {
	svc, err := cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-process cache")
		return cache.NewMemoryCache()
	}
	return svc
}

// newIssueStore opens the configured issue store backend.
func newIssueStore(cfg *config.Config) (issues.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return issues.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	case "sqlite":
		return issues.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// newBuilder wires the Overpass client into the graph ingestion builder.
func newBuilder(store *graphstore.Store, cfg *config.Config) *ingest.Builder {
	fetcher := ingest.NewOverpassClient(cfg.Overpass.URL, cfg.Overpass.Timeout, cfg.Overpass.RequestsPerSec)
	return ingest.NewBuilder(fetcher, store, logger)
}
