package main

import (
	"fmt"
	"log"
	"path/filepath"

	"clawdia/internal/browser"
	"clawdia/internal/config"
	"clawdia/internal/datadir"
	"clawdia/internal/events"
	"clawdia/internal/fastpath"
	"clawdia/internal/pagecache"
	"clawdia/internal/ratelimit"
	"clawdia/internal/research"
	"clawdia/internal/search"
)

// app holds the long-lived services of the research core, constructed once
// and injected into commands.
type app struct {
	cfg         *config.Config
	limiter     *ratelimit.Limiter
	pool        *browser.Pool
	engine      *search.Engine
	store       *pagecache.Store
	registry    *fastpath.Registry
	broadcaster *events.Broadcaster
	planner     *research.Planner
	router      *research.Router
}

// loadConfig resolves the config path and loads it.
func loadConfig() (*config.Config, *datadir.DataDir, error) {
	dd, err := datadir.New("")
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := dd.EnsureDirs(); err != nil {
		log.Printf("WARNING: could not create data directories: %v", err)
	}

	path := cfgFile
	if path == "" {
		path = filepath.Join(dd.ConfigDir(), "config.json")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, dd, nil
}

// buildApp assembles every service from the config. The page cache is
// pruned at startup; an unavailable cache degrades to inline content
// instead of failing the build.
func buildApp(cfg *config.Config, dd *datadir.DataDir) (*app, error) {
	limiter := ratelimit.New(cfg.RateLimitConfigs())

	factory := browser.NewRodFactory("", true)
	pool := browser.NewPool(cfg.Browser, factory)

	providers := search.BuildProviders(cfg.Search, pool)
	engine := search.NewEngine(cfg.Search, providers, limiter)

	pcCfg := cfg.PageCache
	if pcCfg.Path == "" {
		pcCfg.Path = filepath.Join(dd.DatabaseDir(), "search-cache.db")
	}
	store := pagecache.Open(pcCfg)
	if store.Available() {
		age := pcCfg.PruneAge
		if age <= 0 {
			age = pagecache.DefaultPruneAge
		}
		if pruned, err := store.PruneOlderThan(age); err != nil {
			log.Printf("WARNING: startup prune failed: %v", err)
		} else if pruned > 0 {
			log.Printf("[PageCache] pruned %d stale rows at startup", pruned)
		}
	} else {
		log.Printf("WARNING: page cache unavailable; falling back to inline content")
	}

	registryFile := cfg.FastPath.ExtraRegistryFile
	registry, err := fastpath.NewRegistry(registryFile, nil)
	if err != nil {
		return nil, fmt.Errorf("load fast-path registry: %w", err)
	}

	return &app{
		cfg:         cfg,
		limiter:     limiter,
		pool:        pool,
		engine:      engine,
		store:       store,
		registry:    registry,
		broadcaster: events.NewBroadcaster(),
		planner:     research.NewPlanner(cfg.Budget),
		router:      research.NewRouter(),
	}, nil
}

// close tears the services down in reverse dependency order.
func (a *app) close() {
	a.broadcaster.Close()
	a.engine.Close()
	if err := a.pool.Close(); err != nil {
		log.Printf("WARNING: browser pool close: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("WARNING: page cache close: %v", err)
	}
	a.limiter.Close()
}
