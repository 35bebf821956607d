package handlers

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/multisig-chain/wallet-indexer/internal/decoder"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

func handleDailyLimitSet(ctx context.Context, e *decoder.DailyLimitSetEvent, deps Deps) error {
	if err := deps.Store.UpsertDailyLimitState(ctx, store.DailyLimitState{
		WalletAddress: e.Wallet.Hex(),
		DailyLimit:    e.NewLimit,
		SpentToday:    "0",
		LastResetDay:  todayUTC(time.Now()),
	}); err != nil {
		return fmt.Errorf("handlers: upserting daily limit state on %s: %w", e.Wallet.Hex(), err)
	}
	return nil
}

func handleDailyLimitReset(ctx context.Context, e *decoder.DailyLimitResetEvent, deps Deps) error {
	if err := deps.Store.ResetDailyLimit(ctx, e.Wallet.Hex(), todayUTC(time.Now())); err != nil {
		return fmt.Errorf("handlers: resetting daily limit on %s: %w", e.Wallet.Hex(), err)
	}
	return nil
}

// handleDailyLimitTransactionExecuted derives spentToday from the
// chain-reported remainingLimit, clamping to 0 rather than persisting a
// negative remainder when the limit was raised mid-day.
func handleDailyLimitTransactionExecuted(ctx context.Context, e *decoder.DailyLimitTransactionExecutedEvent, deps Deps) error {
	meta := e.Meta()
	wallet := e.Wallet.Hex()

	remaining := e.RemainingLimit
	if err := deps.Store.InsertModuleTransaction(ctx, store.ModuleTransaction{
		WalletAddress:  wallet,
		ModuleType:     store.ModuleTypeDailyLimit,
		ModuleAddress:  meta.Address.Hex(),
		To:             e.To.Hex(),
		Value:          e.Value,
		RemainingLimit: &remaining,
		AtBlock:        meta.BlockNumber,
		AtTx:           meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: inserting daily-limit module transaction on %s: %w", wallet, err)
	}

	state, err := deps.Store.GetDailyLimitState(ctx, wallet)
	if err != nil {
		return fmt.Errorf("handlers: loading daily limit state for %s: %w", wallet, err)
	}
	if state == nil {
		return nil // limit was never configured; nothing to reconcile
	}

	limit, okLimit := new(big.Int).SetString(state.DailyLimit, 10)
	remain, okRemain := new(big.Int).SetString(remaining, 10)
	if !okLimit || !okRemain {
		return fmt.Errorf("handlers: malformed limit values for %s (limit=%q remaining=%q)", wallet, state.DailyLimit, remaining)
	}

	spent := new(big.Int).Sub(limit, remain)
	if spent.Sign() < 0 {
		spent.SetInt64(0)
	}
	if err := deps.Store.UpdateDailyLimitSpent(ctx, wallet, spent.String()); err != nil {
		return fmt.Errorf("handlers: updating spentToday for %s: %w", wallet, err)
	}
	return nil
}

func handleAddressWhitelisted(ctx context.Context, e *decoder.AddressWhitelistedEvent, deps Deps) error {
	if err := deps.Store.InsertWhitelistEntry(ctx, store.WhitelistEntry{
		WalletAddress:      e.Wallet.Hex(),
		WhitelistedAddress: e.Whitelisted.Hex(),
		Limit:              e.Limit,
		AddedAtBlock:       e.Meta().BlockNumber,
		IsActive:           true,
	}); err != nil {
		return fmt.Errorf("handlers: inserting whitelist entry %s on %s: %w", e.Whitelisted.Hex(), e.Wallet.Hex(), err)
	}
	return nil
}

func handleAddressRemovedFromWhitelist(ctx context.Context, e *decoder.AddressRemovedFromWhitelistEvent, deps Deps) error {
	if err := deps.Store.DeactivateWhitelistEntry(ctx, e.Wallet.Hex(), e.Whitelisted.Hex(), e.Meta().BlockNumber); err != nil {
		return fmt.Errorf("handlers: deactivating whitelist entry %s on %s: %w", e.Whitelisted.Hex(), e.Wallet.Hex(), err)
	}
	return nil
}

func handleWhitelistTransactionExecuted(ctx context.Context, e *decoder.WhitelistTransactionExecutedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.InsertModuleTransaction(ctx, store.ModuleTransaction{
		WalletAddress: e.Wallet.Hex(),
		ModuleType:    store.ModuleTypeWhitelist,
		ModuleAddress: meta.Address.Hex(),
		To:            e.To.Hex(),
		Value:         e.Value,
		AtBlock:       meta.BlockNumber,
		AtTx:          meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: inserting whitelist module transaction on %s: %w", e.Wallet.Hex(), err)
	}
	return nil
}
