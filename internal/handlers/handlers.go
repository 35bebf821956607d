// Package handlers implements the pure projection functions that turn
// one decoded chain event into store writes. Each
// handler is a function of (event, deps) only — no package-level
// state — so the pipeline can call them directly off its merge-sorted
// log batch.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/multisig-chain/wallet-indexer/internal/decoder"
	"github.com/multisig-chain/wallet-indexer/internal/rpcclient"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

// RPC is the subset of *rpcclient.Client the late-discovery and
// recovery handlers depend on, narrowed to an interface so this package
// is testable against a fake rather than a dialed connection.
type RPC interface {
	Call(ctx context.Context, to common.Address, data []byte, blockNumber *uint64) ([]byte, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error)
}

var _ RPC = (*rpcclient.Client)(nil)

// Deps bundles everything a handler needs beyond the event itself.
type Deps struct {
	Store           store.Gateway
	RPC             RPC
	ModuleAddresses map[common.Address]bool
	Log             *logrus.Logger
}

// Dispatch routes a decoded event to its handler by Kind. An
// unrecognised Kind is a programming error (the decoder only ever
// produces Kinds this switch knows about), not a runtime condition, so
// it returns an error rather than panicking — a future event kind added
// to the decoder without a handler should fail loudly in CI, not crash
// the pipeline.
func Dispatch(ctx context.Context, ev decoder.Event, deps Deps) error {
	switch e := ev.(type) {
	case *decoder.WalletCreatedEvent:
		return handleWalletCreated(ctx, e, deps)
	case *decoder.WalletRegisteredEvent:
		return handleWalletRegistered(ctx, e, deps)
	case *decoder.TransactionProposedEvent:
		return handleTransactionProposed(ctx, e, deps)
	case *decoder.TransactionApprovedEvent:
		return handleTransactionApproved(ctx, e, deps)
	case *decoder.ApprovalRevokedEvent:
		return handleApprovalRevoked(ctx, e, deps)
	case *decoder.TransactionExecutedEvent:
		return handleTransactionExecuted(ctx, e, deps)
	case *decoder.TransactionCancelledEvent:
		return handleTransactionCancelled(ctx, e, deps)
	case *decoder.OwnerAddedEvent:
		return handleOwnerAdded(ctx, e, deps)
	case *decoder.OwnerRemovedEvent:
		return handleOwnerRemoved(ctx, e, deps)
	case *decoder.ThresholdChangedEvent:
		return handleThresholdChanged(ctx, e, deps)
	case *decoder.ModuleEnabledEvent:
		return handleModuleEnabled(ctx, e, deps)
	case *decoder.ModuleDisabledEvent:
		return handleModuleDisabled(ctx, e, deps)
	case *decoder.ReceivedEvent:
		return handleReceived(ctx, e, deps)
	case *decoder.RecoverySetupEvent:
		return handleRecoverySetup(ctx, e, deps)
	case *decoder.RecoveryInitiatedEvent:
		return handleRecoveryInitiated(ctx, e, deps)
	case *decoder.RecoveryApprovedEvent:
		return handleRecoveryApproved(ctx, e, deps)
	case *decoder.RecoveryApprovalRevokedEvent:
		return handleRecoveryApprovalRevoked(ctx, e, deps)
	case *decoder.RecoveryExecutedEvent:
		return handleRecoveryExecuted(ctx, e, deps)
	case *decoder.RecoveryCancelledEvent:
		return handleRecoveryCancelled(ctx, e, deps)
	case *decoder.DailyLimitSetEvent:
		return handleDailyLimitSet(ctx, e, deps)
	case *decoder.DailyLimitResetEvent:
		return handleDailyLimitReset(ctx, e, deps)
	case *decoder.DailyLimitTransactionExecutedEvent:
		return handleDailyLimitTransactionExecuted(ctx, e, deps)
	case *decoder.AddressWhitelistedEvent:
		return handleAddressWhitelisted(ctx, e, deps)
	case *decoder.AddressRemovedFromWhitelistEvent:
		return handleAddressRemovedFromWhitelist(ctx, e, deps)
	case *decoder.WhitelistTransactionExecutedEvent:
		return handleWhitelistTransactionExecuted(ctx, e, deps)
	default:
		return fmt.Errorf("handlers: no handler registered for %T", ev)
	}
}

func todayUTC(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
