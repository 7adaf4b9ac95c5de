package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-align/internal/service"
)

type fakeRecomputer struct {
	mu      sync.Mutex
	orgs    []string
	failOrg string
	calls   map[string]time.Time
	listErr error
}

func (f *fakeRecomputer) Organizations(context.Context) ([]string, error) {
	return f.orgs, f.listErr
}

func (f *fakeRecomputer) RecomputeOrg(_ context.Context, orgID string, asOf time.Time) (service.RecomputeReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]time.Time{}
	}
	f.calls[orgID] = asOf
	if orgID == f.failOrg {
		return service.RecomputeReport{}, errors.New("boom")
	}
	return service.RecomputeReport{OrganizationID: orgID, Stagnant: []string{"g-" + orgID}}, nil
}

func TestRunOnce_RecomputesEveryOrg(t *testing.T) {
	f := &fakeRecomputer{orgs: []string{"org-c", "org-a", "org-b"}, failOrg: "org-b"}
	w := NewRecomputeWorker(f, "0 2 * * *", 2)
	asOf := time.Date(2026, time.April, 1, 2, 0, 0, 0, time.UTC)

	reports, err := w.RunOnce(context.Background(), asOf)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(f.calls) != 3 {
		t.Errorf("expected 3 organisations visited, got %d", len(f.calls))
	}
	for org, at := range f.calls {
		if !at.Equal(asOf) {
			t.Errorf("org %s recomputed at %v, want %v", org, at, asOf)
		}
	}
	if len(reports) != 2 || reports[0].OrganizationID != "org-a" || reports[1].OrganizationID != "org-c" {
		t.Errorf("expected sorted reports for healthy orgs, got %+v", reports)
	}
}

func TestRunOnce_ListError(t *testing.T) {
	f := &fakeRecomputer{listErr: errors.New("db down")}
	w := NewRecomputeWorker(f, "0 2 * * *", 1)
	if _, err := w.RunOnce(context.Background(), time.Now()); err == nil {
		t.Errorf("expected error when organisations cannot be listed")
	}
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	w := NewRecomputeWorker(&fakeRecomputer{}, "every day", 1)
	if err := w.Start(context.Background()); err == nil {
		t.Errorf("expected error for invalid schedule")
	}
}

func TestStartStop(t *testing.T) {
	w := NewRecomputeWorker(&fakeRecomputer{}, "0 2 * * *", 1)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()
	w.Stop()
	w.Stop()
}

func TestStop_ReleasesWatcherWithoutCancel(t *testing.T) {
	w := NewRecomputeWorker(&fakeRecomputer{}, "0 2 * * *", 1)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()
	select {
	case <-w.watcherDone:
	case <-time.After(time.Second):
		t.Fatal("context watcher still running after Stop")
	}
}
