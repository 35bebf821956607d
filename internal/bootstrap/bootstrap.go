// Package bootstrap wires a Config into the concrete components
// cmd/indexer and cmd/backfill both need, so the two entrypoints share
// one construction path instead of duplicating it.
package bootstrap

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/multisig-chain/wallet-indexer/internal/config"
	"github.com/multisig-chain/wallet-indexer/internal/handlers"
	"github.com/multisig-chain/wallet-indexer/internal/pipeline"
	"github.com/multisig-chain/wallet-indexer/internal/rpcclient"
	"github.com/multisig-chain/wallet-indexer/internal/store"
	"github.com/multisig-chain/wallet-indexer/pkg/logging"
)

// App bundles every long-lived component the two entrypoints construct
// from a Config.
type App struct {
	Config   *config.Config
	Log      *logrus.Logger
	RPC      *rpcclient.Client
	Store    store.Gateway
	Pipeline *pipeline.Pipeline
}

// Build takes an already loaded Config, builds the logger, dials the RPC
// client, and assembles the pipeline — but does not start it; callers decide whether
// to run a one-shot backfill or the long-running Run loop.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		ToFile:   cfg.LogToFile,
		FilePath: cfg.LogFilePath,
	})

	rpc, err := rpcclient.Dial(ctx, rpcclient.Options{
		URL:                cfg.RPCURL,
		RateLimitN:         cfg.RateLimitN,
		RateLimitWindowMS:  cfg.RateLimitWindowMS,
		TimestampCacheSize: cfg.TimestampCacheSize,
		Log:                log,
	})
	if err != nil {
		return nil, err
	}

	gw := store.NewHTTPGateway(cfg.StoreURL, cfg.StoreServiceKey, cfg.StoreSchema, log)

	moduleAddrs := make(map[common.Address]bool)
	var moduleAddrList []common.Address
	for _, a := range cfg.ModuleAddresses() {
		addr := common.HexToAddress(a)
		moduleAddrs[addr] = true
		moduleAddrList = append(moduleAddrList, addr)
	}

	deps := handlers.Deps{
		Store:           gw,
		RPC:             rpc,
		ModuleAddresses: moduleAddrs,
		Log:             log,
	}

	pl := pipeline.New(pipeline.Config{
		FactoryAddress:    common.HexToAddress(cfg.FactoryAddress),
		ModuleAddresses:   moduleAddrList,
		StartBlock:        cfg.StartBlock,
		ConfirmationDepth: cfg.ConfirmationDepth,
		BatchSize:         uint64(cfg.BatchSize),
		PollInterval:      time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}, rpc, gw, deps, log)

	return &App{Config: cfg, Log: log, RPC: rpc, Store: gw, Pipeline: pl}, nil
}
