package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/civicmaps/civicroute/internal/graphstore"
	"github.com/civicmaps/civicroute/internal/gridcache"
	"github.com/civicmaps/civicroute/internal/logging"
	"github.com/civicmaps/civicroute/internal/routing"
	"github.com/civicmaps/civicroute/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the CivicRoute HTTP API: route queries, map-view issue lookups,
graph import and cache maintenance endpoints.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := logging.ProductionConfig()
	if verbose {
		logCfg = logging.DebugConfig()
	}
	slogger := logging.Setup(logCfg)

	client, graph, err := newGraphStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	cacheSvc := newCacheService(ctx, cfg)
	defer cacheSvc.Close()

	issueStore, err := newIssueStore(cfg)
	if err != nil {
		return err
	}
	defer issueStore.Close()

	pathfinder := routing.NewPathfinder(graph, cfg.Routing)
	grid := gridcache.New(cacheSvc, issueStore, cfg.Grid)
	builder := newBuilder(graph, cfg)

	api := server.NewAPIHandlers(slogger, pathfinder, grid, builder)
	router := server.NewRouter(slogger, server.RouterDependencies{
		Health: &healthProbe{client: client},
		API:    api,
	})
	srv := server.New(slogger, cfg.HTTP, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// healthProbe checks the backing stores for the health endpoint. Cache
// connectivity is deliberately excluded; the grid cache degrades to
// direct store queries without it.
type healthProbe struct {
	client *graphstore.Client
}

func (p *healthProbe) Probe(ctx context.Context) error {
	return p.client.HealthCheck(ctx)
}
