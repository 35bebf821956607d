package handlers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/multisig-chain/wallet-indexer/internal/decoder"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

func handleRecoverySetup(ctx context.Context, e *decoder.RecoverySetupEvent, deps Deps) error {
	meta := e.Meta()
	wallet := e.Wallet.Hex()

	if err := deps.Store.UpsertRecoveryConfig(ctx, store.RecoveryConfig{
		WalletAddress:  wallet,
		Threshold:      e.Threshold,
		RecoveryPeriod: e.RecoveryPeriod,
		SetupAtBlock:   meta.BlockNumber,
		SetupAtTx:      meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: upserting recovery config on %s: %w", wallet, err)
	}

	if err := deps.Store.DeactivateGuardians(ctx, wallet); err != nil {
		return fmt.Errorf("handlers: deactivating prior guardians on %s: %w", wallet, err)
	}

	guardians := make([]store.RecoveryGuardian, len(e.Guardians))
	for i, g := range e.Guardians {
		guardians[i] = store.RecoveryGuardian{
			WalletAddress:   wallet,
			GuardianAddress: g.Hex(),
			AddedAtBlock:    meta.BlockNumber,
			AddedAtTx:       meta.TxHash.Hex(),
			IsActive:        true,
		}
	}
	if len(guardians) > 0 {
		if err := deps.Store.InsertGuardians(ctx, guardians); err != nil {
			return fmt.Errorf("handlers: inserting guardians on %s: %w", wallet, err)
		}
	}
	return nil
}

// handleRecoveryInitiated computes executionTime from the chain's own
// block timestamp rather than wall-clock, falling back to wall-clock
// only if the RPC read fails — and logs that fallback rather than
// taking it silently.
func handleRecoveryInitiated(ctx context.Context, e *decoder.RecoveryInitiatedEvent, deps Deps) error {
	meta := e.Meta()
	wallet := e.Wallet.Hex()

	config, err := deps.Store.GetRecoveryConfig(ctx, wallet)
	if err != nil {
		return fmt.Errorf("handlers: loading recovery config for %s: %w", wallet, err)
	}
	if config == nil {
		return fmt.Errorf("handlers: recovery initiated on %s with no recovery config on file", wallet)
	}

	period, ok := new(big.Int).SetString(config.RecoveryPeriod, 10)
	if !ok {
		return fmt.Errorf("handlers: malformed recoveryPeriod %q for %s", config.RecoveryPeriod, wallet)
	}

	var executionTime int64
	blockTS, tsErr := deps.RPC.BlockTimestamp(ctx, meta.BlockNumber)
	if tsErr != nil {
		deps.Log.WithError(tsErr).WithField("wallet", wallet).
			Warn("handlers: falling back to wall-clock for recovery executionTime; block timestamp read failed")
		executionTime = time.Now().Unix() + period.Int64()
	} else {
		executionTime = int64(blockTS) + period.Int64()
	}

	if err := deps.Store.UpsertRecovery(ctx, store.Recovery{
		WalletAddress:     wallet,
		RecoveryHash:      e.RecoveryHash.Hex(),
		NewOwners:         hexAddresses(e.NewOwners),
		NewThreshold:      e.NewThreshold,
		Initiator:         e.Initiator.Hex(),
		ApprovalCount:     0,
		RequiredThreshold: config.Threshold,
		ExecutionTime:     executionTime,
		Status:            store.RecoveryStatusPending,
		InitiatedAtBlock:  meta.BlockNumber,
		InitiatedAtTx:     meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: upserting recovery %s on %s: %w", e.RecoveryHash.Hex(), wallet, err)
	}
	return nil
}

func handleRecoveryApproved(ctx context.Context, e *decoder.RecoveryApprovedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.InsertRecoveryApproval(ctx, store.RecoveryApproval{
		WalletAddress:   e.Wallet.Hex(),
		RecoveryHash:    e.RecoveryHash.Hex(),
		GuardianAddress: e.Guardian.Hex(),
		ApprovedAtBlock: meta.BlockNumber,
		ApprovedAtTx:    meta.TxHash.Hex(),
		IsActive:        true,
	}); err != nil {
		return fmt.Errorf("handlers: inserting recovery approval for %s on %s: %w", e.RecoveryHash.Hex(), e.Wallet.Hex(), err)
	}
	return nil
}

func handleRecoveryApprovalRevoked(ctx context.Context, e *decoder.RecoveryApprovalRevokedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.DeactivateRecoveryApproval(ctx, e.Wallet.Hex(), e.RecoveryHash.Hex(), e.Guardian.Hex(), meta.BlockNumber, meta.TxHash.Hex()); err != nil {
		return fmt.Errorf("handlers: revoking recovery approval for %s on %s: %w", e.RecoveryHash.Hex(), e.Wallet.Hex(), err)
	}
	return nil
}

func handleRecoveryExecuted(ctx context.Context, e *decoder.RecoveryExecutedEvent, deps Deps) error {
	if err := deps.Store.UpdateRecoveryStatus(ctx, e.Wallet.Hex(), e.RecoveryHash.Hex(), store.RecoveryStatusExecuted); err != nil {
		return fmt.Errorf("handlers: marking recovery %s executed on %s: %w", e.RecoveryHash.Hex(), e.Wallet.Hex(), err)
	}
	return nil
}

func handleRecoveryCancelled(ctx context.Context, e *decoder.RecoveryCancelledEvent, deps Deps) error {
	if err := deps.Store.UpdateRecoveryStatus(ctx, e.Wallet.Hex(), e.RecoveryHash.Hex(), store.RecoveryStatusCancelled); err != nil {
		return fmt.Errorf("handlers: marking recovery %s cancelled on %s: %w", e.RecoveryHash.Hex(), e.Wallet.Hex(), err)
	}
	return nil
}

func hexAddresses(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}
