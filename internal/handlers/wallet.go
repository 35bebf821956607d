package handlers

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/multisig-chain/wallet-indexer/internal/decoder"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

func handleWalletCreated(ctx context.Context, e *decoder.WalletCreatedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.UpsertWallet(ctx, store.Wallet{
		Address:        e.Wallet.Hex(),
		Threshold:      e.Threshold,
		OwnerCount:     len(e.Owners),
		CreatedAtBlock: meta.BlockNumber,
		CreatedAtTx:    meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: upserting wallet %s: %w", e.Wallet.Hex(), err)
	}
	return insertOwners(ctx, deps, e.Wallet.Hex(), e.Owners, meta.BlockNumber, meta.TxHash.Hex())
}

// getOwnersSelector / thresholdSelector are the 4-byte function
// selectors the late-discovery path calls when WalletRegistered doesn't
// carry the owner set directly.
var (
	getOwnersSelector = crypto.Keccak256([]byte("getOwners()"))[:4]
	thresholdSelector = crypto.Keccak256([]byte("threshold()"))[:4]
)

func handleWalletRegistered(ctx context.Context, e *decoder.WalletRegisteredEvent, deps Deps) error {
	meta := e.Meta()

	// Pinned to the event's own block height rather than "latest":
	// getOwners()/threshold() are read as of the block that emitted
	// WalletRegistered, not "latest", so a registration processed later
	// during backfill still observes the owner set at registration time.
	atBlock := meta.BlockNumber

	ownersRaw, err := deps.RPC.Call(ctx, e.Wallet, getOwnersSelector, &atBlock)
	if err != nil {
		return fmt.Errorf("handlers: calling getOwners() on %s: %w", e.Wallet.Hex(), err)
	}
	owners, err := decoder.DecodeAddressArray(ownersRaw)
	if err != nil {
		return fmt.Errorf("handlers: decoding getOwners() result for %s: %w", e.Wallet.Hex(), err)
	}

	thresholdRaw, err := deps.RPC.Call(ctx, e.Wallet, thresholdSelector, &atBlock)
	if err != nil {
		return fmt.Errorf("handlers: calling threshold() on %s: %w", e.Wallet.Hex(), err)
	}
	threshold := decodeUint256(thresholdRaw)

	if err := deps.Store.UpsertWallet(ctx, store.Wallet{
		Address:        e.Wallet.Hex(),
		Threshold:      threshold,
		OwnerCount:     len(owners),
		CreatedAtBlock: meta.BlockNumber,
		CreatedAtTx:    meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: upserting late-discovered wallet %s: %w", e.Wallet.Hex(), err)
	}
	return insertOwners(ctx, deps, e.Wallet.Hex(), owners, meta.BlockNumber, meta.TxHash.Hex())
}

func handleOwnerAdded(ctx context.Context, e *decoder.OwnerAddedEvent, deps Deps) error {
	meta := e.Meta()
	wallet := meta.Address.Hex()
	if err := deps.Store.InsertOwners(ctx, []store.WalletOwner{{
		WalletAddress: wallet,
		OwnerAddress:  e.Owner.Hex(),
		AddedAtBlock:  meta.BlockNumber,
		AddedAtTx:     meta.TxHash.Hex(),
		IsActive:      true,
	}}); err != nil {
		return fmt.Errorf("handlers: inserting added owner %s on %s: %w", e.Owner.Hex(), wallet, err)
	}
	if err := deps.Store.IncrementOwnerCount(ctx, wallet, 1); err != nil {
		return fmt.Errorf("handlers: incrementing owner count on %s: %w", wallet, err)
	}
	return nil
}

func handleOwnerRemoved(ctx context.Context, e *decoder.OwnerRemovedEvent, deps Deps) error {
	meta := e.Meta()
	wallet := meta.Address.Hex()
	if err := deps.Store.DeactivateOwner(ctx, wallet, e.Owner.Hex(), meta.BlockNumber); err != nil {
		return fmt.Errorf("handlers: deactivating owner %s on %s: %w", e.Owner.Hex(), wallet, err)
	}
	if err := deps.Store.IncrementOwnerCount(ctx, wallet, -1); err != nil {
		return fmt.Errorf("handlers: decrementing owner count on %s: %w", wallet, err)
	}
	return nil
}

func handleThresholdChanged(ctx context.Context, e *decoder.ThresholdChangedEvent, deps Deps) error {
	wallet := e.Meta().Address.Hex()
	if err := deps.Store.UpdateWalletThreshold(ctx, wallet, e.NewThreshold); err != nil {
		return fmt.Errorf("handlers: updating threshold on %s: %w", wallet, err)
	}
	return nil
}

func handleModuleEnabled(ctx context.Context, e *decoder.ModuleEnabledEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.UpsertModule(ctx, store.Module{
		WalletAddress:  meta.Address.Hex(),
		ModuleAddress:  e.Module.Hex(),
		EnabledAtBlock: meta.BlockNumber,
		IsActive:       true,
	}); err != nil {
		return fmt.Errorf("handlers: upserting enabled module %s on %s: %w", e.Module.Hex(), meta.Address.Hex(), err)
	}
	return nil
}

func handleModuleDisabled(ctx context.Context, e *decoder.ModuleDisabledEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.DeactivateModule(ctx, meta.Address.Hex(), e.Module.Hex(), meta.BlockNumber); err != nil {
		return fmt.Errorf("handlers: deactivating module %s on %s: %w", e.Module.Hex(), meta.Address.Hex(), err)
	}
	return nil
}

func handleReceived(ctx context.Context, e *decoder.ReceivedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.InsertDeposit(ctx, store.Deposit{
		WalletAddress:    meta.Address.Hex(),
		SenderAddress:    e.Sender.Hex(),
		Amount:           e.Amount,
		DepositedAtBlock: meta.BlockNumber,
		DepositedAtTx:    meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: inserting deposit on %s: %w", meta.Address.Hex(), err)
	}
	return nil
}

func insertOwners(ctx context.Context, deps Deps, wallet string, owners []common.Address, atBlock uint64, atTx string) error {
	rows := make([]store.WalletOwner, len(owners))
	for i, o := range owners {
		rows[i] = store.WalletOwner{
			WalletAddress: wallet,
			OwnerAddress:  o.Hex(),
			AddedAtBlock:  atBlock,
			AddedAtTx:     atTx,
			IsActive:      true,
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := deps.Store.InsertOwners(ctx, rows); err != nil {
		return fmt.Errorf("handlers: batch inserting owners of %s: %w", wallet, err)
	}
	return nil
}

// decodeUint256 reads a single right-aligned 32-byte big-endian word as
// a decimal string; threshold() returns exactly one such word.
func decodeUint256(data []byte) string {
	if len(data) < 32 {
		return "0"
	}
	return new(big.Int).SetBytes(data[len(data)-32:]).String()
}
