package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/multisig-chain/wallet-indexer/internal/pipeline"
)

type fakeRPC struct {
	tip uint64
	err error
}

func (f *fakeRPC) BlockNumber(ctx context.Context) (uint64, error) { return f.tip, f.err }

type fakeStore struct{ err error }

func (f *fakeStore) Ping(ctx context.Context) error { return f.err }

type fakePipeline struct{ snap pipeline.Snapshot }

func (f *fakePipeline) Snapshot() pipeline.Snapshot { return f.snap }

func TestHandleLiveAlwaysOK(t *testing.T) {
	s := NewServer("", &fakeRPC{err: errors.New("rpc down")}, &fakeStore{err: errors.New("store down")}, &fakePipeline{}, 2, 100, nil)
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	s.handleLive(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleReadyFailsWhenNotRunning(t *testing.T) {
	s := NewServer("", &fakeRPC{tip: 100}, &fakeStore{}, &fakePipeline{snap: pipeline.Snapshot{IsRunning: false}}, 2, 100, nil)
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.handleReady(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHandleReadyPassesWhenHealthy(t *testing.T) {
	snap := pipeline.Snapshot{IsRunning: true, LastIndexedBlock: 95}
	s := NewServer("", &fakeRPC{tip: 100}, &fakeStore{}, &fakePipeline{snap: snap}, 2, 100, nil)
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.handleReady(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleHealthUnhealthyWhenTooFarBehindAndNotSyncing(t *testing.T) {
	snap := pipeline.Snapshot{IsRunning: true, LastIndexedBlock: 10, IsSyncing: false}
	s := NewServer("", &fakeRPC{tip: 1000}, &fakeStore{}, &fakePipeline{snap: snap}, 2, 50, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when blocksBehind exceeds max, got %d", rec.Code)
	}
}

func TestHandleHealthHealthyWhenSyncingDespiteLargeGap(t *testing.T) {
	snap := pipeline.Snapshot{IsRunning: true, LastIndexedBlock: 10, IsSyncing: true}
	s := NewServer("", &fakeRPC{tip: 1000}, &fakeStore{}, &fakePipeline{snap: snap}, 2, 50, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 while syncing, got %d", rec.Code)
	}
}

func TestBlocksBehindClampsAtZero(t *testing.T) {
	if got := blocksBehind(10, 20, 2); got != 0 {
		t.Fatalf("blocksBehind(10, 20, 2) = %d, want 0", got)
	}
	if got := blocksBehind(100, 10, 2); got != 88 {
		t.Fatalf("blocksBehind(100, 10, 2) = %d, want 88", got)
	}
}
