package pipeline

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/multisig-chain/wallet-indexer/internal/handlers"
	"github.com/multisig-chain/wallet-indexer/internal/store"
)

// fakeRPC is a scripted RPC: GetLogs returns whatever's enqueued for the
// given address set, keyed by addrKey (the lowercased addresses joined
// with commas).
type fakeRPC struct {
	tip  uint64
	logs map[string][]types.Log
}

func (f *fakeRPC) BlockNumber(ctx context.Context) (uint64, error) { return f.tip, nil }

func (f *fakeRPC) GetLogs(ctx context.Context, addresses []common.Address, topic0 []common.Hash, from, to uint64) ([]types.Log, error) {
	key := addrKey(addresses)
	return f.logs[key], nil
}

func addrKey(addrs []common.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = strings.ToLower(a.Hex())
	}
	return strings.Join(parts, ",")
}

// fakeGateway is an in-memory store.Gateway stub recording what the
// pipeline writes, just enough surface for the scanner's own tests —
// handler-level behavior is exercised in internal/handlers instead.
type fakeGateway struct {
	wallets         []string
	checkpoint      store.IndexerCheckpoint
	upsertedWallets []store.Wallet
}

func (f *fakeGateway) UpsertWallet(ctx context.Context, w store.Wallet) error {
	f.upsertedWallets = append(f.upsertedWallets, w)
	return nil
}
func (f *fakeGateway) InsertOwners(ctx context.Context, owners []store.WalletOwner) error { return nil }
func (f *fakeGateway) DeactivateOwner(ctx context.Context, wallet, owner string, removedAtBlock uint64) error {
	return nil
}
func (f *fakeGateway) IncrementOwnerCount(ctx context.Context, wallet string, delta int) error {
	return nil
}
func (f *fakeGateway) UpdateWalletThreshold(ctx context.Context, wallet, threshold string) error {
	return nil
}
func (f *fakeGateway) UpsertModule(ctx context.Context, m store.Module) error { return nil }
func (f *fakeGateway) DeactivateModule(ctx context.Context, wallet, module string, disabledAtBlock uint64) error {
	return nil
}
func (f *fakeGateway) UpsertTransaction(ctx context.Context, tx store.Transaction) error { return nil }
func (f *fakeGateway) UpdateTransactionStatus(ctx context.Context, wallet, txHash string, status store.TransactionStatus, atBlock uint64, atTx string) error {
	return nil
}
func (f *fakeGateway) InsertConfirmation(ctx context.Context, c store.Confirmation) error { return nil }
func (f *fakeGateway) DeactivateConfirmation(ctx context.Context, wallet, txHash, owner string, revokedAtBlock uint64, revokedAtTx string) error {
	return nil
}
func (f *fakeGateway) InsertDeposit(ctx context.Context, d store.Deposit) error { return nil }
func (f *fakeGateway) UpsertRecoveryConfig(ctx context.Context, c store.RecoveryConfig) error {
	return nil
}
func (f *fakeGateway) GetRecoveryConfig(ctx context.Context, wallet string) (*store.RecoveryConfig, error) {
	return nil, nil
}
func (f *fakeGateway) DeactivateGuardians(ctx context.Context, wallet string) error { return nil }
func (f *fakeGateway) InsertGuardians(ctx context.Context, guardians []store.RecoveryGuardian) error {
	return nil
}
func (f *fakeGateway) UpsertRecovery(ctx context.Context, r store.Recovery) error { return nil }
func (f *fakeGateway) UpdateRecoveryStatus(ctx context.Context, wallet, recoveryHash string, status store.RecoveryStatus) error {
	return nil
}
func (f *fakeGateway) InsertRecoveryApproval(ctx context.Context, a store.RecoveryApproval) error {
	return nil
}
func (f *fakeGateway) DeactivateRecoveryApproval(ctx context.Context, wallet, recoveryHash, guardian string, revokedAtBlock uint64, revokedAtTx string) error {
	return nil
}
func (f *fakeGateway) GetDailyLimitState(ctx context.Context, wallet string) (*store.DailyLimitState, error) {
	return nil, nil
}
func (f *fakeGateway) UpsertDailyLimitState(ctx context.Context, s store.DailyLimitState) error {
	return nil
}
func (f *fakeGateway) UpdateDailyLimitSpent(ctx context.Context, wallet, spentToday string) error {
	return nil
}
func (f *fakeGateway) ResetDailyLimit(ctx context.Context, wallet, today string) error { return nil }
func (f *fakeGateway) InsertWhitelistEntry(ctx context.Context, e store.WhitelistEntry) error {
	return nil
}
func (f *fakeGateway) DeactivateWhitelistEntry(ctx context.Context, wallet, whitelisted string, removedAtBlock uint64) error {
	return nil
}
func (f *fakeGateway) InsertModuleTransaction(ctx context.Context, t store.ModuleTransaction) error {
	return nil
}
func (f *fakeGateway) GetAllWalletAddresses(ctx context.Context) ([]string, error) {
	return f.wallets, nil
}
func (f *fakeGateway) GetCheckpoint(ctx context.Context) (store.IndexerCheckpoint, error) {
	return f.checkpoint, nil
}
func (f *fakeGateway) SetCheckpoint(ctx context.Context, c store.IndexerCheckpoint) error {
	f.checkpoint = c
	return nil
}
func (f *fakeGateway) Ping(ctx context.Context) error { return nil }

func newTestPipeline(rpc *fakeRPC, gw *fakeGateway, factory common.Address) *Pipeline {
	deps := handlers.Deps{
		Store:           gw,
		ModuleAddresses: map[common.Address]bool{},
		Log:             logrus.New(),
	}
	cfg := Config{
		FactoryAddress:    factory,
		ConfirmationDepth: 0,
		BatchSize:         1000,
		PollInterval:      time.Millisecond,
	}
	return New(cfg, rpc, gw, deps, logrus.New())
}

func packWalletCreatedLog(t *testing.T, wallet common.Address, blockNumber uint64, logIndex uint) types.Log {
	t.Helper()
	ev := walletABIForTest(t).Events["WalletCreated"]
	nonIndexed := ev.Inputs.NonIndexed()
	data, err := nonIndexed.Pack([]common.Address{}, big.NewInt(1), common.Address{}, common.Hash{})
	if err != nil {
		t.Fatalf("packing WalletCreated data: %v", err)
	}
	return types.Log{
		Address:     wallet,
		Topics:      []common.Hash{ev.ID, common.BytesToHash(wallet.Bytes())},
		Data:        data,
		BlockNumber: blockNumber,
		Index:       logIndex,
	}
}

func walletABIForTest(t *testing.T) abi.ABI {
	t.Helper()
	a, err := abi.JSON(strings.NewReader(`[{"anonymous":false,"name":"WalletCreated","type":"event","inputs":[
		{"indexed":true,"name":"wallet","type":"address"},
		{"indexed":false,"name":"owners","type":"address[]"},
		{"indexed":false,"name":"threshold","type":"uint256"},
		{"indexed":false,"name":"deployer","type":"address"},
		{"indexed":false,"name":"salt","type":"bytes32"}
	]}]`))
	if err != nil {
		t.Fatalf("parsing test ABI: %v", err)
	}
	return a
}

func TestSortMergedOrdersByBlockThenPriorityThenLogIndex(t *testing.T) {
	all := []taggedLog{
		{log: types.Log{BlockNumber: 10, Index: 5}, priority: 1},
		{log: types.Log{BlockNumber: 10, Index: 1}, priority: 0},
		{log: types.Log{BlockNumber: 9, Index: 0}, priority: 2},
		{log: types.Log{BlockNumber: 10, Index: 2}, priority: 0},
	}
	sortMerged(all)

	wantBlocks := []uint64{9, 10, 10, 10}
	wantPriorities := []int{2, 0, 0, 1}
	for i := range all {
		if all[i].log.BlockNumber != wantBlocks[i] {
			t.Fatalf("position %d: block = %d, want %d", i, all[i].log.BlockNumber, wantBlocks[i])
		}
		if all[i].priority != wantPriorities[i] {
			t.Fatalf("position %d: priority = %d, want %d", i, all[i].priority, wantPriorities[i])
		}
	}
	// Within block 10, priority 0 entries must additionally be ordered by log index.
	if all[1].log.Index != 1 || all[2].log.Index != 2 {
		t.Fatalf("priority-0 entries within block 10 not ordered by log index: got %d, %d", all[1].log.Index, all[2].log.Index)
	}
}

func TestSafeTipClampsAtZero(t *testing.T) {
	if got := safeTip(5, 10); got != 0 {
		t.Fatalf("safeTip(5, 10) = %d, want 0", got)
	}
	if got := safeTip(100, 10); got != 90 {
		t.Fatalf("safeTip(100, 10) = %d, want 90", got)
	}
}

func TestBackfillNoopWhenFromAfterTo(t *testing.T) {
	rpc := &fakeRPC{tip: 100, logs: map[string][]types.Log{}}
	gw := &fakeGateway{}
	p := newTestPipeline(rpc, gw, common.HexToAddress("0x1"))

	if err := p.Backfill(context.Background(), 50, 10, 1000); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if gw.checkpoint.LastIndexedBlock != 0 {
		t.Fatalf("expected no checkpoint advance, got %d", gw.checkpoint.LastIndexedBlock)
	}
}

func TestIndexRangeAdvancesCheckpointOnSuccess(t *testing.T) {
	factory := common.HexToAddress("0xfactory00000000000000000000000000000001")
	rpc := &fakeRPC{tip: 100, logs: map[string][]types.Log{
		strings.ToLower(factory.Hex()): nil,
	}}
	gw := &fakeGateway{}
	p := newTestPipeline(rpc, gw, factory)

	if err := p.IndexRange(context.Background(), 1, 50); err != nil {
		t.Fatalf("IndexRange: %v", err)
	}
	if gw.checkpoint.LastIndexedBlock != 50 {
		t.Fatalf("checkpoint = %d, want 50", gw.checkpoint.LastIndexedBlock)
	}
}

// A log that claims a known signature but carries garbage data is
// dropped; the rest of the range still commits.
func TestIndexRangeDropsUndecodableLogAndStillCommits(t *testing.T) {
	factory := common.HexToAddress("0xfactory00000000000000000000000000000003")
	wallet := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	bad := packWalletCreatedLog(t, wallet, 10, 0)
	bad.Data = bad.Data[:8] // truncate the ABI payload

	rpc := &fakeRPC{
		tip: 100,
		logs: map[string][]types.Log{
			strings.ToLower(factory.Hex()): {bad},
		},
	}
	gw := &fakeGateway{}
	p := newTestPipeline(rpc, gw, factory)

	if err := p.IndexRange(context.Background(), 10, 10); err != nil {
		t.Fatalf("IndexRange should drop the malformed log, got %v", err)
	}
	if gw.checkpoint.LastIndexedBlock != 10 {
		t.Fatalf("checkpoint = %d, want 10", gw.checkpoint.LastIndexedBlock)
	}
	if len(gw.upsertedWallets) != 0 {
		t.Fatalf("no wallet should have been projected from a malformed log")
	}
}

func TestWalletCreatedTracksWalletBeforeLaterLogsInSameBatch(t *testing.T) {
	factory := common.HexToAddress("0xfactory00000000000000000000000000000002")
	wallet := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	createdLog := packWalletCreatedLog(t, wallet, 10, 0)
	factoryKey := strings.ToLower(factory.Hex())

	rpc := &fakeRPC{
		tip: 100,
		logs: map[string][]types.Log{
			factoryKey: {createdLog},
		},
	}
	gw := &fakeGateway{}
	p := newTestPipeline(rpc, gw, factory)

	if err := p.IndexRange(context.Background(), 10, 10); err != nil {
		t.Fatalf("IndexRange: %v", err)
	}
	if p.TrackedWalletCount() != 1 {
		t.Fatalf("expected wallet to be tracked after WalletCreated, got %d tracked", p.TrackedWalletCount())
	}
}
