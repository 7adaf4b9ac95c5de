package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go-align/internal/api"
	"go-align/internal/cache"
	"go-align/internal/config"
	"go-align/internal/db"
	"go-align/internal/service"
	"go-align/internal/store"
	"go-align/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := db.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	rdb := cache.NewClient(cfg)

	svc := service.NewAlignmentService(
		store.New(db.DB),
		cache.NewSummaryCache(rdb, cfg.SummaryTTL()),
		service.Options{
			Propagate:        cfg.PropagateOptions(),
			Summary:          cfg.SummaryOptions(),
			StagnationWindow: cfg.StagnationWindow(),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the recompute worker if enabled
	if cfg.Worker.Enabled {
		w := worker.NewRecomputeWorker(svc, cfg.Worker.Schedule, cfg.Worker.Concurrency)
		if err := w.Start(ctx); err != nil {
			log.Printf("[Main] WARNING: Failed to start recompute worker: %v", err)
		} else {
			log.Printf("[Main] Recompute worker started (schedule: %s)", cfg.Worker.Schedule)
		}
	} else {
		log.Printf("[Main] Recompute worker disabled in config")
	}

	r := api.SetupRouter(cfg, rdb, svc)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Starting server on %s%s\n", addr, cfg.Server.Subpath)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
