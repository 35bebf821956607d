package handlers

import (
	"context"
	"fmt"

	"github.com/multisig-chain/wallet-indexer/internal/decoder"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

func handleTransactionProposed(ctx context.Context, e *decoder.TransactionProposedEvent, deps Deps) error {
	meta := e.Meta()
	wallet := meta.Address.Hex()

	params := decoder.ClassifyCalldata(e.Data, e.To, deps.ModuleAddresses)
	decodedParams := params.Args
	if decodedParams == nil {
		decodedParams = map[string]any{}
	}
	if params.Function != "" {
		decodedParams["function"] = params.Function
	}

	if err := deps.Store.UpsertTransaction(ctx, store.Transaction{
		WalletAddress:     wallet,
		TxHash:            e.TxID.Hex(),
		To:                e.To.Hex(),
		Value:             e.Value,
		Data:              fmt.Sprintf("0x%x", e.Data),
		TransactionType:   store.TransactionType(params.Type),
		DecodedParams:     decodedParams,
		Status:            store.TxStatusPending,
		ConfirmationCount: 0,
		SubmittedBy:       e.Proposer.Hex(),
		SubmittedAtBlock:  meta.BlockNumber,
		SubmittedAtTx:     meta.TxHash.Hex(),
	}); err != nil {
		return fmt.Errorf("handlers: upserting proposed transaction %s on %s: %w", e.TxID.Hex(), wallet, err)
	}
	return nil
}

func handleTransactionApproved(ctx context.Context, e *decoder.TransactionApprovedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.InsertConfirmation(ctx, store.Confirmation{
		WalletAddress:    meta.Address.Hex(),
		TxHash:           e.TxID.Hex(),
		OwnerAddress:     e.Owner.Hex(),
		ConfirmedAtBlock: meta.BlockNumber,
		ConfirmedAtTx:    meta.TxHash.Hex(),
		IsActive:         true,
	}); err != nil {
		return fmt.Errorf("handlers: inserting confirmation for %s on %s: %w", e.TxID.Hex(), meta.Address.Hex(), err)
	}
	return nil
}

func handleApprovalRevoked(ctx context.Context, e *decoder.ApprovalRevokedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.DeactivateConfirmation(ctx, meta.Address.Hex(), e.TxID.Hex(), e.Owner.Hex(), meta.BlockNumber, meta.TxHash.Hex()); err != nil {
		return fmt.Errorf("handlers: revoking confirmation for %s on %s: %w", e.TxID.Hex(), meta.Address.Hex(), err)
	}
	return nil
}

func handleTransactionExecuted(ctx context.Context, e *decoder.TransactionExecutedEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.UpdateTransactionStatus(ctx, meta.Address.Hex(), e.TxID.Hex(), store.TxStatusExecuted, meta.BlockNumber, meta.TxHash.Hex()); err != nil {
		return fmt.Errorf("handlers: marking transaction %s executed on %s: %w", e.TxID.Hex(), meta.Address.Hex(), err)
	}
	return nil
}

func handleTransactionCancelled(ctx context.Context, e *decoder.TransactionCancelledEvent, deps Deps) error {
	meta := e.Meta()
	if err := deps.Store.UpdateTransactionStatus(ctx, meta.Address.Hex(), e.TxID.Hex(), store.TxStatusCancelled, meta.BlockNumber, meta.TxHash.Hex()); err != nil {
		return fmt.Errorf("handlers: marking transaction %s cancelled on %s: %w", e.TxID.Hex(), meta.Address.Hex(), err)
	}
	return nil
}
