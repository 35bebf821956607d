package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Source identifies which of the scanner's three fetch groups a log came
// from; it picks the signature table to decode against, which is also
// how the TransactionExecuted name collision between the wallet and the
// daily-limit module is resolved — see DESIGN.md.
type Source int

const (
	SourceFactory Source = iota
	SourceWallet
	SourceModule
)

// DecodeError marks a log that claims a registered signature but whose
// topics or data don't unpack against it. The caller drops the log with
// a debug log line and continues the batch; a malformed log never halts
// indexing.
type DecodeError struct {
	Event  string
	Topic0 common.Hash
	Cause  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder: decoding %s (topic0=%s): %v", e.Event, e.Topic0.Hex(), e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode dispatches a log to the signature table for its source and
// returns the typed Event, or (nil, nil) if topic0 is not in that
// table — an unknown event is silently skipped, never an error, unless
// the log is structurally malformed (e.g. claims a signature but the
// data doesn't unpack), which returns a non-nil error the caller logs
// and skips too.
func Decode(log types.Log, source Source) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	topic0 := log.Topics[0]

	table := tableFor(source)
	ev, err := eventByID(table, topic0)
	if err != nil {
		return nil, nil // unknown topic0 for this source: silently skipped
	}

	args, err := decodeLogArgs(ev, log)
	if err != nil {
		return nil, &DecodeError{Event: ev.Name, Topic0: topic0, Cause: err}
	}

	meta := LogMeta{
		Address:     log.Address,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    uint(log.Index),
	}

	return build(ev.Name, source, meta, args)
}

func tableFor(source Source) abi.ABI {
	switch source {
	case SourceFactory:
		return factoryABI
	case SourceModule:
		return moduleABI
	default:
		return walletABI
	}
}

func eventByID(table abi.ABI, topic0 common.Hash) (abi.Event, error) {
	for _, ev := range table.Events {
		if ev.ID == topic0 {
			return ev, nil
		}
	}
	return abi.Event{}, fmt.Errorf("topic0 %s not registered", topic0.Hex())
}

// decodeLogArgs unpacks both the indexed (topic) and non-indexed (data)
// arguments of ev into a single name-keyed map.
func decodeLogArgs(ev abi.Event, log types.Log) (map[string]any, error) {
	out := make(map[string]any)

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if len(log.Topics) < len(indexed)+1 {
			return nil, fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(log.Topics)-1)
		}
		if err := abi.ParseTopicsIntoMap(out, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("parsing indexed topics: %w", err)
		}
	}

	nonIndexed := ev.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		if err := nonIndexed.UnpackIntoMap(out, log.Data); err != nil {
			return nil, fmt.Errorf("unpacking data: %w", err)
		}
	}

	return out, nil
}

// ---- typed struct construction -------------------------------------------------

func build(name string, source Source, meta LogMeta, a map[string]any) (Event, error) {
	b := base{meta: meta}

	switch name {
	case "WalletCreated":
		b.kind = KindWalletCreated
		return &WalletCreatedEvent{
			base:      b,
			Wallet:    mustAddress(a, "wallet"),
			Owners:    mustAddressSlice(a, "owners"),
			Threshold: mustBigInt(a, "threshold").String(),
			Deployer:  mustAddress(a, "deployer"),
			Salt:      mustHash(a, "salt"),
		}, nil
	case "WalletRegistered":
		b.kind = KindWalletRegistered
		return &WalletRegisteredEvent{
			base:      b,
			Wallet:    mustAddress(a, "wallet"),
			Registrar: mustAddress(a, "registrar"),
		}, nil
	case "TransactionProposed":
		b.kind = KindTransactionProposed
		return &TransactionProposedEvent{
			base:     b,
			TxID:     mustHash(a, "txHash"),
			Proposer: mustAddress(a, "proposer"),
			To:       mustAddress(a, "to"),
			Value:    mustBigInt(a, "value").String(),
			Data:     mustBytes(a, "data"),
		}, nil
	case "TransactionApproved":
		b.kind = KindTransactionApproved
		return &TransactionApprovedEvent{base: b, TxID: mustHash(a, "txHash"), Owner: mustAddress(a, "owner")}, nil
	case "ApprovalRevoked":
		b.kind = KindApprovalRevoked
		return &ApprovalRevokedEvent{base: b, TxID: mustHash(a, "txHash"), Owner: mustAddress(a, "owner")}, nil
	case "TransactionExecuted":
		if source == SourceModule {
			b.kind = KindDailyLimitTransactionExecuted
			return &DailyLimitTransactionExecutedEvent{
				base:           b,
				Wallet:         mustAddress(a, "wallet"),
				To:             mustAddress(a, "to"),
				Value:          mustBigInt(a, "value").String(),
				RemainingLimit: mustBigInt(a, "remainingLimit").String(),
			}, nil
		}
		b.kind = KindTransactionExecuted
		return &TransactionExecutedEvent{base: b, TxID: mustHash(a, "txHash"), Executor: mustAddress(a, "executor")}, nil
	case "TransactionCancelled":
		b.kind = KindTransactionCancelled
		return &TransactionCancelledEvent{base: b, TxID: mustHash(a, "txHash"), Executor: mustAddress(a, "executor")}, nil
	case "OwnerAdded":
		b.kind = KindOwnerAdded
		return &OwnerAddedEvent{base: b, Owner: mustAddress(a, "owner")}, nil
	case "OwnerRemoved":
		b.kind = KindOwnerRemoved
		return &OwnerRemovedEvent{base: b, Owner: mustAddress(a, "owner")}, nil
	case "ThresholdChanged":
		b.kind = KindThresholdChanged
		return &ThresholdChangedEvent{base: b, NewThreshold: mustBigInt(a, "newThreshold").String()}, nil
	case "ModuleEnabled":
		b.kind = KindModuleEnabled
		return &ModuleEnabledEvent{base: b, Module: mustAddress(a, "module")}, nil
	case "ModuleDisabled":
		b.kind = KindModuleDisabled
		return &ModuleDisabledEvent{base: b, Module: mustAddress(a, "module")}, nil
	case "Received":
		b.kind = KindReceived
		return &ReceivedEvent{base: b, Sender: mustAddress(a, "sender"), Amount: mustBigInt(a, "amount").String()}, nil
	case "RecoverySetup":
		b.kind = KindRecoverySetup
		return &RecoverySetupEvent{
			base:           b,
			Wallet:         mustAddress(a, "wallet"),
			Guardians:      mustAddressSlice(a, "guardians"),
			Threshold:      mustBigInt(a, "threshold").String(),
			RecoveryPeriod: mustBigInt(a, "recoveryPeriod").String(),
		}, nil
	case "RecoveryInitiated":
		b.kind = KindRecoveryInitiated
		return &RecoveryInitiatedEvent{
			base:         b,
			Wallet:       mustAddress(a, "wallet"),
			RecoveryHash: mustHash(a, "recoveryHash"),
			NewOwners:    mustAddressSlice(a, "newOwners"),
			NewThreshold: mustBigInt(a, "newThreshold").String(),
			Initiator:    mustAddress(a, "initiator"),
		}, nil
	case "RecoveryApproved":
		b.kind = KindRecoveryApproved
		return &RecoveryApprovedEvent{base: b, Wallet: mustAddress(a, "wallet"), RecoveryHash: mustHash(a, "recoveryHash"), Guardian: mustAddress(a, "guardian")}, nil
	case "RecoveryApprovalRevoked":
		b.kind = KindRecoveryApprovalRevoked
		return &RecoveryApprovalRevokedEvent{base: b, Wallet: mustAddress(a, "wallet"), RecoveryHash: mustHash(a, "recoveryHash"), Guardian: mustAddress(a, "guardian")}, nil
	case "RecoveryExecuted":
		b.kind = KindRecoveryExecuted
		return &RecoveryExecutedEvent{base: b, Wallet: mustAddress(a, "wallet"), RecoveryHash: mustHash(a, "recoveryHash")}, nil
	case "RecoveryCancelled":
		b.kind = KindRecoveryCancelled
		return &RecoveryCancelledEvent{base: b, Wallet: mustAddress(a, "wallet"), RecoveryHash: mustHash(a, "recoveryHash")}, nil
	case "DailyLimitSet":
		b.kind = KindDailyLimitSet
		return &DailyLimitSetEvent{base: b, Wallet: mustAddress(a, "wallet"), NewLimit: mustBigInt(a, "newLimit").String()}, nil
	case "DailyLimitReset":
		b.kind = KindDailyLimitReset
		return &DailyLimitResetEvent{base: b, Wallet: mustAddress(a, "wallet")}, nil
	case "AddressWhitelisted":
		b.kind = KindAddressWhitelisted
		return &AddressWhitelistedEvent{base: b, Wallet: mustAddress(a, "wallet"), Whitelisted: mustAddress(a, "whitelisted"), Limit: mustBigInt(a, "limit").String()}, nil
	case "AddressRemovedFromWhitelist":
		b.kind = KindAddressRemovedFromWhitelist
		return &AddressRemovedFromWhitelistEvent{base: b, Wallet: mustAddress(a, "wallet"), Whitelisted: mustAddress(a, "whitelisted")}, nil
	case "WhitelistTransactionExecuted":
		b.kind = KindWhitelistTransactionExecuted
		return &WhitelistTransactionExecutedEvent{base: b, Wallet: mustAddress(a, "wallet"), To: mustAddress(a, "to"), Value: mustBigInt(a, "value").String()}, nil
	default:
		return nil, fmt.Errorf("no builder registered for event %q", name)
	}
}

func mustAddress(a map[string]any, key string) common.Address {
	v, _ := a[key].(common.Address)
	return v
}

func mustHash(a map[string]any, key string) common.Hash {
	switch v := a[key].(type) {
	case [32]byte:
		return common.Hash(v)
	case common.Hash:
		return v
	default:
		return common.Hash{}
	}
}

func mustBigInt(a map[string]any, key string) *big.Int {
	if v, ok := a[key].(*big.Int); ok && v != nil {
		return v
	}
	return big.NewInt(0)
}

func mustBytes(a map[string]any, key string) []byte {
	if v, ok := a[key].([]byte); ok {
		return v
	}
	return nil
}

func mustAddressSlice(a map[string]any, key string) []common.Address {
	if v, ok := a[key].([]common.Address); ok {
		return v
	}
	return nil
}
