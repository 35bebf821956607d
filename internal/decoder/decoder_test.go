package decoder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func packEvent(t *testing.T, table abi.ABI, name string, indexedTopics []common.Hash, nonIndexedArgs ...any) types.Log {
	t.Helper()
	ev, ok := table.Events[name]
	if !ok {
		t.Fatalf("event %q not in table", name)
	}

	var nonIndexed abi.Arguments
	for _, arg := range ev.Inputs {
		if !arg.Indexed {
			nonIndexed = append(nonIndexed, arg)
		}
	}
	data, err := nonIndexed.Pack(nonIndexedArgs...)
	if err != nil {
		t.Fatalf("packing %s data: %v", name, err)
	}

	topics := append([]common.Hash{ev.ID}, indexedTopics...)
	return types.Log{Topics: topics, Data: data, BlockNumber: 100, TxHash: common.HexToHash("0xaa"), Index: 3}
}

func TestDecodeWalletCreated(t *testing.T) {
	wallet := common.HexToAddress("0x1111111111111111111111111111111111111111")
	owners := []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")}
	deployer := common.HexToAddress("0x3333333333333333333333333333333333333333")
	salt := common.HexToHash("0xdead")

	log := packEvent(t, factoryABI, "WalletCreated",
		[]common.Hash{common.BytesToHash(wallet.Bytes())},
		owners, big.NewInt(2), deployer, salt,
	)
	log.Address = wallet

	ev, err := Decode(log, SourceFactory)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wc, ok := ev.(*WalletCreatedEvent)
	if !ok {
		t.Fatalf("expected *WalletCreatedEvent, got %T", ev)
	}
	if wc.Kind() != KindWalletCreated {
		t.Fatalf("expected KindWalletCreated, got %s", wc.Kind())
	}
	if wc.Wallet != wallet {
		t.Fatalf("wallet mismatch: %s != %s", wc.Wallet.Hex(), wallet.Hex())
	}
	if wc.Threshold != "2" {
		t.Fatalf("expected threshold 2, got %s", wc.Threshold)
	}
	if len(wc.Owners) != 1 || wc.Owners[0] != owners[0] {
		t.Fatalf("owners mismatch: %v", wc.Owners)
	}
	if wc.Meta().BlockNumber != 100 {
		t.Fatalf("expected meta block 100, got %d", wc.Meta().BlockNumber)
	}
}

// TestTransactionExecutedDisambiguation covers a naming collision:
// the wallet and the daily-limit module both emit an event named
// TransactionExecuted, but with different argument shapes, so they have
// different topic0 and decode to different Kinds depending on source.
func TestTransactionExecutedDisambiguation(t *testing.T) {
	txHash := common.HexToHash("0xbeef")
	executor := common.HexToAddress("0x4444444444444444444444444444444444444444")
	walletLog := packEvent(t, walletABI, "TransactionExecuted",
		[]common.Hash{txHash, common.BytesToHash(executor.Bytes())},
	)

	ev, err := Decode(walletLog, SourceWallet)
	if err != nil {
		t.Fatalf("Decode wallet: %v", err)
	}
	te, ok := ev.(*TransactionExecutedEvent)
	if !ok {
		t.Fatalf("expected *TransactionExecutedEvent, got %T", ev)
	}
	if te.Kind() != KindTransactionExecuted {
		t.Fatalf("expected KindTransactionExecuted, got %s", te.Kind())
	}

	wallet := common.HexToAddress("0x5555555555555555555555555555555555555555")
	to := common.HexToAddress("0x6666666666666666666666666666666666666666")
	moduleLog := packEvent(t, moduleABI, "TransactionExecuted",
		[]common.Hash{common.BytesToHash(wallet.Bytes())},
		to, big.NewInt(1000), big.NewInt(500),
	)

	ev2, err := Decode(moduleLog, SourceModule)
	if err != nil {
		t.Fatalf("Decode module: %v", err)
	}
	dl, ok := ev2.(*DailyLimitTransactionExecutedEvent)
	if !ok {
		t.Fatalf("expected *DailyLimitTransactionExecutedEvent, got %T", ev2)
	}
	if dl.Kind() != KindDailyLimitTransactionExecuted {
		t.Fatalf("expected KindDailyLimitTransactionExecuted, got %s", dl.Kind())
	}
	if walletABI.Events["TransactionExecuted"].ID == moduleABI.Events["TransactionExecuted"].ID {
		t.Fatalf("wallet and module TransactionExecuted must not share topic0")
	}
}

func TestDecodeUnknownTopicIsSilentlySkipped(t *testing.T) {
	log := types.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}, Data: nil}
	ev, err := Decode(log, SourceWallet)
	if err != nil {
		t.Fatalf("expected nil error for unknown topic, got %v", err)
	}
	if ev != nil {
		t.Fatalf("expected nil event for unknown topic, got %v", ev)
	}
}

func TestDecodeEmptyTopicsReturnsNil(t *testing.T) {
	ev, err := Decode(types.Log{}, SourceWallet)
	if err != nil || ev != nil {
		t.Fatalf("expected (nil, nil) for a log with no topics, got (%v, %v)", ev, err)
	}
}
