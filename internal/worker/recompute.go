package worker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"go-align/internal/service"
)

// Recomputer is the part of the alignment service the worker drives.
type Recomputer interface {
	Organizations(ctx context.Context) ([]string, error)
	RecomputeOrg(ctx context.Context, orgID string, asOf time.Time) (service.RecomputeReport, error)
}

// RecomputeWorker re-propagates every organisation on a cron schedule so
// risk and status follow the calendar even without new progress.
type RecomputeWorker struct {
	engine      Recomputer
	schedule    string
	concurrency int
	cron        *cron.Cron
	now         func() time.Time
	stopOnce    sync.Once
	stopped     chan struct{} // closed by Stop
	watcherDone chan struct{} // closed when the ctx watcher returns
}

// NewRecomputeWorker creates a worker. concurrency bounds how many
// organisations are recomputed at once.
func NewRecomputeWorker(engine Recomputer, schedule string, concurrency int) *RecomputeWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &RecomputeWorker{
		engine:      engine,
		schedule:    schedule,
		concurrency: concurrency,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		now:         func() time.Time { return time.Now().UTC() },
		stopped:     make(chan struct{}),
		watcherDone: make(chan struct{}),
	}
}

// Start registers the schedule and runs until ctx is cancelled or Stop is called.
func (w *RecomputeWorker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.RunOnce(ctx, w.now()); err != nil {
			log.Printf("[RecomputeWorker] ERROR: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid recompute schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	log.Printf("[RecomputeWorker] Started (schedule %q, concurrency %d)", w.schedule, w.concurrency)

	go func() {
		defer close(w.watcherDone)
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopped:
		}
	}()
	return nil
}

// Stop waits for a running cycle to finish. Safe to call multiple times.
func (w *RecomputeWorker) Stop() {
	w.stopOnce.Do(func() {
		log.Printf("[RecomputeWorker] Stopping")
		close(w.stopped)
		<-w.cron.Stop().Done()
	})
}

// RunOnce recomputes every organisation at asOf. A failing organisation is
// logged and skipped; reports are returned ordered by organisation id.
func (w *RecomputeWorker) RunOnce(ctx context.Context, asOf time.Time) ([]service.RecomputeReport, error) {
	started := time.Now()
	orgs, err := w.engine.Organizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organisations: %w", err)
	}
	log.Printf("[RecomputeWorker] Cycle for %d organisations at %s", len(orgs), asOf.Format(time.RFC3339))

	var (
		mu      sync.Mutex
		reports []service.RecomputeReport
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, orgID := range orgs {
		orgID := orgID
		g.Go(func() error {
			report, err := w.engine.RecomputeOrg(gctx, orgID, asOf)
			if err != nil {
				log.Printf("[RecomputeWorker] Org %s failed: %v", orgID, err)
				return nil
			}
			if len(report.Stagnant) > 0 {
				log.Printf("[RecomputeWorker] Org %s has %d stagnant goals", orgID, len(report.Stagnant))
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].OrganizationID < reports[j].OrganizationID })
	log.Printf("[RecomputeWorker] Cycle complete in %s (%d/%d organisations)", time.Since(started).Round(time.Millisecond), len(reports), len(orgs))
	return reports, nil
}
