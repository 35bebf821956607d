// Package pipeline is the indexer's scanner: it fetches logs from the
// three source groups (factory, tracked wallets, configured modules),
// merges them into one deterministic order, and dispatches each to
// internal/handlers.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/multisig-chain/wallet-indexer/internal/decoder"
	"github.com/multisig-chain/wallet-indexer/internal/handlers"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

// walletAddressChunkSize caps how many addresses ride in a single
// eth_getLogs call, staying under provider address-filter limits.
const walletAddressChunkSize = 100

// RPC is the subset of *rpcclient.Client the pipeline depends on —
// narrowed to keep this package testable against a fake.
type RPC interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, addresses []common.Address, topic0 []common.Hash, fromBlock, toBlock uint64) ([]types.Log, error)
}

// Config is the scanner's tunables, sourced from internal/config.
type Config struct {
	FactoryAddress    common.Address
	ModuleAddresses   []common.Address
	StartBlock        uint64
	ConfirmationDepth uint64
	BatchSize         uint64
	PollInterval      time.Duration
}

// Pipeline owns the tracked-wallet set and drives the backfill/poll
// loops. Event processing is strictly single-threaded: handlers mutate
// store counters that would race under concurrent dispatch.
type Pipeline struct {
	cfg  Config
	rpc  RPC
	st   store.Gateway
	deps handlers.Deps
	log  *logrus.Logger

	mu      sync.Mutex
	tracked map[common.Address]bool

	running atomic.Bool
	syncing atomic.Bool

	lastIndexed atomic.Uint64
	currentTip  atomic.Uint64
}

func New(cfg Config, rpc RPC, st store.Gateway, deps handlers.Deps, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{
		cfg:     cfg,
		rpc:     rpc,
		st:      st,
		deps:    deps,
		log:     log,
		tracked: make(map[common.Address]bool),
	}
}

// taggedLog carries a fetched log plus its merge-sort key.
type taggedLog struct {
	log      types.Log
	source   decoder.Source
	priority int
}

// LoadTrackedWallets (re)populates the in-memory tracked-wallet set from
// the store — run at startup, and again whenever the poll loop detects a
// gap (the set may have been emptied by a store reset).
func (p *Pipeline) LoadTrackedWallets(ctx context.Context) error {
	addrs, err := p.st.GetAllWalletAddresses(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: loading tracked wallets: %w", err)
	}
	next := make(map[common.Address]bool, len(addrs))
	for _, a := range addrs {
		next[common.HexToAddress(a)] = true
	}
	p.mu.Lock()
	p.tracked = next
	p.mu.Unlock()
	p.log.WithField("count", len(next)).Info("pipeline: loaded tracked wallets")
	return nil
}

func (p *Pipeline) trackedSnapshot() []common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]common.Address, 0, len(p.tracked))
	for a := range p.tracked {
		out = append(out, a)
	}
	return out
}

func (p *Pipeline) track(addr common.Address) {
	p.mu.Lock()
	p.tracked[addr] = true
	p.mu.Unlock()
}

func (p *Pipeline) TrackedWalletCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracked)
}

// fetchFactoryLogs pulls WalletCreated/WalletRegistered logs from the
// factory contract; these sort ahead of everything else in their block.
func (p *Pipeline) fetchFactoryLogs(ctx context.Context, from, to uint64) ([]taggedLog, error) {
	logs, err := p.rpc.GetLogs(ctx, []common.Address{p.cfg.FactoryAddress}, decoder.FactoryTopics(), from, to)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetching factory logs: %w", err)
	}
	out := make([]taggedLog, len(logs))
	for i, l := range logs {
		out[i] = taggedLog{log: l, source: decoder.SourceFactory, priority: 0}
	}
	return out, nil
}

// fetchWalletLogs pulls logs for every tracked wallet, chunking the
// address filter to stay under provider limits.
func (p *Pipeline) fetchWalletLogs(ctx context.Context, from, to uint64) ([]taggedLog, error) {
	wallets := p.trackedSnapshot()
	if len(wallets) == 0 {
		return nil, nil
	}

	topics := decoder.WalletTopics()
	var out []taggedLog
	for start := 0; start < len(wallets); start += walletAddressChunkSize {
		end := start + walletAddressChunkSize
		if end > len(wallets) {
			end = len(wallets)
		}
		chunk := wallets[start:end]
		logs, err := p.rpc.GetLogs(ctx, chunk, topics, from, to)
		if err != nil {
			return nil, fmt.Errorf("pipeline: fetching wallet logs (chunk %d-%d): %w", start, end, err)
		}
		for _, l := range logs {
			out = append(out, taggedLog{log: l, source: decoder.SourceWallet, priority: 1})
		}
	}
	return out, nil
}

// fetchModuleLogs pulls logs emitted by the configured module contracts.
func (p *Pipeline) fetchModuleLogs(ctx context.Context, from, to uint64) ([]taggedLog, error) {
	if len(p.cfg.ModuleAddresses) == 0 {
		return nil, nil
	}
	logs, err := p.rpc.GetLogs(ctx, p.cfg.ModuleAddresses, decoder.ModuleTopics(), from, to)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetching module logs: %w", err)
	}
	out := make([]taggedLog, len(logs))
	for i, l := range logs {
		out[i] = taggedLog{log: l, source: decoder.SourceModule, priority: 2}
	}
	return out, nil
}

// sortMerged orders the merged list by (blockNumber asc, priority asc,
// logIndex asc) — total and deterministic across sources, so factory
// events land before wallet events emitted in the same block.
func sortMerged(all []taggedLog) {
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.log.BlockNumber != b.log.BlockNumber {
			return a.log.BlockNumber < b.log.BlockNumber
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.log.Index < b.log.Index
	})
}

// IndexRange is the atomic unit of progress: fetch all three source
// groups, merge-sort, decode and dispatch in order, and only then
// advance the checkpoint. On any handler failure the checkpoint stays
// put and the same range is retried on the next poll.
func (p *Pipeline) IndexRange(ctx context.Context, from, to uint64) error {
	factoryLogs, err := p.fetchFactoryLogs(ctx, from, to)
	if err != nil {
		return err
	}
	// Wallets created or registered in this range join the tracked set
	// before the wallet logs are fetched, so their own later logs in the
	// same range are fetched and merged too.
	for _, tl := range factoryLogs {
		ev, err := decoder.Decode(tl.log, tl.source)
		if err != nil || ev == nil {
			continue // dispatchOne logs and drops it
		}
		switch e := ev.(type) {
		case *decoder.WalletCreatedEvent:
			p.track(e.Wallet)
		case *decoder.WalletRegisteredEvent:
			p.track(e.Wallet)
		}
	}
	walletLogs, err := p.fetchWalletLogs(ctx, from, to)
	if err != nil {
		return err
	}
	moduleLogs, err := p.fetchModuleLogs(ctx, from, to)
	if err != nil {
		return err
	}

	merged := make([]taggedLog, 0, len(factoryLogs)+len(walletLogs)+len(moduleLogs))
	merged = append(merged, factoryLogs...)
	merged = append(merged, walletLogs...)
	merged = append(merged, moduleLogs...)
	sortMerged(merged)

	for _, tl := range merged {
		if err := p.dispatchOne(ctx, tl); err != nil {
			return fmt.Errorf("pipeline: indexing range [%d,%d]: %w", from, to, err)
		}
	}

	if err := p.st.SetCheckpoint(ctx, store.IndexerCheckpoint{
		LastIndexedBlock: to,
		LastIndexedAt:    time.Now().Unix(),
		IsSyncing:        p.syncing.Load(),
	}); err != nil {
		return fmt.Errorf("pipeline: advancing checkpoint to %d: %w", to, err)
	}
	p.lastIndexed.Store(to)
	return nil
}

// dispatchOne decodes a single log and dispatches it, registering any
// newly created wallet in the tracked set BEFORE the handler runs so a
// follow-up event later in the same batch observes it. A
// log that fails to decode is dropped, never fatal to the batch —
// handler/store errors are.
func (p *Pipeline) dispatchOne(ctx context.Context, tl taggedLog) error {
	ev, err := decoder.Decode(tl.log, tl.source)
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"tx":       tl.log.TxHash.Hex(),
			"logIndex": tl.log.Index,
		}).Debug("pipeline: dropping undecodable log")
		return nil
	}
	if ev == nil {
		return nil
	}

	switch ev.Kind() {
	case decoder.KindWalletCreated:
		p.track(ev.(*decoder.WalletCreatedEvent).Wallet)
	case decoder.KindWalletRegistered:
		p.track(ev.(*decoder.WalletRegisteredEvent).Wallet)
	}

	if err := handlers.Dispatch(ctx, ev, p.deps); err != nil {
		return fmt.Errorf("dispatching %s: %w", ev.Kind(), err)
	}
	return nil
}

// Backfill iterates [from, to] in batches of batchSize (or cfg.BatchSize
// if 0), flagging isSyncing for the duration.
func (p *Pipeline) Backfill(ctx context.Context, from, to, batchSize uint64) error {
	if batchSize == 0 {
		batchSize = p.cfg.BatchSize
	}
	if batchSize == 0 {
		batchSize = 1000
	}
	if from > to {
		return nil
	}

	p.syncing.Store(true)
	defer p.syncing.Store(false)

	for cursor := from; cursor <= to; {
		end := cursor + batchSize - 1
		if end > to {
			end = to
		}
		if err := p.IndexRange(ctx, cursor, end); err != nil {
			return err
		}
		if end == to {
			break
		}
		cursor = end + 1
	}
	return nil
}

// Stop requests the poll loop exit at the next iteration boundary; an
// outstanding batch is allowed to complete.
func (p *Pipeline) Stop() { p.running.Store(false) }

// Run executes the full startup sequence and then the poll loop,
// blocking until ctx is cancelled or Stop is called.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.LoadTrackedWallets(ctx); err != nil {
		return err
	}

	checkpoint, err := p.st.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: loading checkpoint: %w", err)
	}

	tip, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: reading chain tip: %w", err)
	}
	p.currentTip.Store(tip)

	startBlock := checkpoint.LastIndexedBlock + 1
	if p.cfg.StartBlock > startBlock {
		startBlock = p.cfg.StartBlock
	}
	safeBlock := safeTip(tip, p.cfg.ConfirmationDepth)

	if startBlock <= safeBlock {
		if err := p.Backfill(ctx, startBlock, safeBlock, p.cfg.BatchSize); err != nil {
			return fmt.Errorf("pipeline: initial backfill: %w", err)
		}
	} else {
		p.lastIndexed.Store(checkpoint.LastIndexedBlock)
	}

	p.running.Store(true)
	return p.pollLoop(ctx)
}

func safeTip(tip, confirmationDepth uint64) uint64 {
	if tip < confirmationDepth {
		return 0
	}
	return tip - confirmationDepth
}

// pollLoop is the steady-state loop: cooperative, single-threaded,
// ticking every cfg.PollInterval.
func (p *Pipeline) pollLoop(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for p.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if !p.running.Load() {
			return nil
		}
		if err := p.pollOnce(ctx); err != nil {
			p.log.WithError(err).Warn("pipeline: poll tick failed, will retry next tick")
		}
	}
	return nil
}

// pollOnce runs one poll tick's worth of work: read checkpoint and tip,
// detect a gap, and either backfill over it or index the range directly.
func (p *Pipeline) pollOnce(ctx context.Context) error {
	checkpoint, err := p.st.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("reading checkpoint: %w", err)
	}
	tip, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("reading chain tip: %w", err)
	}
	p.currentTip.Store(tip)

	safeBlock := safeTip(tip, p.cfg.ConfirmationDepth)
	if safeBlock <= checkpoint.LastIndexedBlock {
		return nil // nothing new yet
	}

	batchSize := p.cfg.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	if safeBlock-checkpoint.LastIndexedBlock > batchSize {
		p.log.WithFields(logrus.Fields{
			"checkpoint": checkpoint.LastIndexedBlock,
			"safeBlock":  safeBlock,
		}).Warn("pipeline: detected indexing gap, reloading tracked wallets and backfilling")
		if err := p.LoadTrackedWallets(ctx); err != nil {
			return err
		}
		return p.Backfill(ctx, checkpoint.LastIndexedBlock+1, safeBlock, batchSize)
	}

	return p.IndexRange(ctx, checkpoint.LastIndexedBlock+1, safeBlock)
}

// Snapshot is the read-only state the health probe consumes — a single
// writer (this pipeline's own goroutine), any number of readers.
type Snapshot struct {
	CurrentBlock     uint64
	LastIndexedBlock uint64
	IsSyncing        bool
	IsRunning        bool
	TrackedWallets   int
}

func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		CurrentBlock:     p.currentTip.Load(),
		LastIndexedBlock: p.lastIndexed.Load(),
		IsSyncing:        p.syncing.Load(),
		IsRunning:        p.running.Load(),
		TrackedWallets:   p.TrackedWalletCount(),
	}
}

// RefreshTip reads the chain tip and records it as the snapshot's
// CurrentBlock, so the pipeline's own idea of the tip can be brought
// current between poll ticks.
func (p *Pipeline) RefreshTip(ctx context.Context) (uint64, error) {
	tip, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	p.currentTip.Store(tip)
	return tip, nil
}
