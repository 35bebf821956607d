// Package health exposes the indexer's liveness/readiness/health
// endpoints. The probe only reads: pipeline state arrives as an atomic
// snapshot with the pipeline as the single writer.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/multisig-chain/wallet-indexer/internal/pipeline"
)

// RPC is the one chain call the probe needs: current tip.
type RPC interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Store is the one store call the probe needs: a cheap reachability
// check.
type Store interface {
	Ping(ctx context.Context) error
}

// Pipeline is the read side of internal/pipeline.Pipeline the probe
// consumes; the pipeline itself is the only writer of this state.
type Pipeline interface {
	Snapshot() pipeline.Snapshot
}

var (
	blocksBehindGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_blocks_behind",
		Help: "Blocks between the chain tip (minus confirmation depth) and the last committed checkpoint.",
	})
	trackedWalletsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_tracked_wallets",
		Help: "Number of wallet addresses currently tracked by the scanner.",
	})
	lastIndexedBlockGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_last_indexed_block",
		Help: "Block number of the last committed checkpoint.",
	})
)

// Server serves /live, /ready, /health, and /metrics.
type Server struct {
	rpc               RPC
	store             Store
	pl                Pipeline
	confirmationDepth uint64
	maxBlocksBehind   uint64
	log               *logrus.Logger

	httpServer *http.Server
}

func NewServer(addr string, rpc RPC, store Store, pl Pipeline, confirmationDepth, maxBlocksBehind uint64, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	s := &Server{
		rpc:               rpc,
		store:             store,
		pl:                pl,
		confirmationDepth: confirmationDepth,
		maxBlocksBehind:   maxBlocksBehind,
		log:               log,
	}

	r := chi.NewRouter()
	r.Get("/live", s.handleLive)
	r.Get("/ready", s.handleReady)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

// Shutdown gives in-flight requests 5s to finish before forcing the
// socket closed.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// checks runs the two calls that back both /ready and /health, so
// neither handler issues the underlying RPC/store call twice.
type checks struct {
	currentBlock uint64
	rpcErr       error
	storeErr     error
	snap         pipeline.Snapshot
}

func (s *Server) runChecks(r *http.Request) checks {
	var c checks
	c.currentBlock, c.rpcErr = s.rpc.BlockNumber(r.Context())
	c.storeErr = s.store.Ping(r.Context())
	c.snap = s.pl.Snapshot()
	return c
}

func (c checks) pass(maxBlocksBehind uint64, confirmationDepth uint64) bool {
	if c.rpcErr != nil || c.storeErr != nil {
		return false
	}
	if !c.snap.IsRunning {
		return false
	}
	if blocksBehind(c.currentBlock, c.snap.LastIndexedBlock, confirmationDepth) > maxBlocksBehind && !c.snap.IsSyncing {
		return false
	}
	return true
}

func blocksBehind(currentBlock, lastIndexedBlock, confirmationDepth uint64) uint64 {
	effective := lastIndexedBlock + confirmationDepth
	if currentBlock <= effective {
		return 0
	}
	return currentBlock - effective
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	c := s.runChecks(r)
	if !c.pass(s.maxBlocksBehind, s.confirmationDepth) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// healthDocument is the /health response body: per-check status plus
// the indexer's derived progress fields.
type healthDocument struct {
	Status           string            `json:"status"`
	Checks           map[string]string `json:"checks"`
	CurrentBlock     uint64            `json:"currentBlock"`
	LastIndexedBlock uint64            `json:"lastIndexedBlock"`
	BlocksBehind     uint64            `json:"blocksBehind"`
	IsSyncing        bool              `json:"isSyncing"`
	TrackedWallets   int               `json:"trackedWallets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	c := s.runChecks(r)

	checkStatus := func(err error) string {
		if err != nil {
			return err.Error()
		}
		return "ok"
	}
	indexerStatus := "ok"
	if !c.snap.IsRunning {
		indexerStatus = "not running"
	}

	behind := blocksBehind(c.currentBlock, c.snap.LastIndexedBlock, s.confirmationDepth)
	blocksBehindGauge.Set(float64(behind))
	trackedWalletsGauge.Set(float64(c.snap.TrackedWallets))
	lastIndexedBlockGauge.Set(float64(c.snap.LastIndexedBlock))

	doc := healthDocument{
		Status: "ok",
		Checks: map[string]string{
			"rpc":     checkStatus(c.rpcErr),
			"store":   checkStatus(c.storeErr),
			"indexer": indexerStatus,
		},
		CurrentBlock:     c.currentBlock,
		LastIndexedBlock: c.snap.LastIndexedBlock,
		BlocksBehind:     behind,
		IsSyncing:        c.snap.IsSyncing,
		TrackedWallets:   c.snap.TrackedWallets,
	}

	status := http.StatusOK
	if !c.pass(s.maxBlocksBehind, s.confirmationDepth) {
		doc.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, doc)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
