package decoder

import (
	"github.com/ethereum/go-ethereum/common"
)

// Kind tags a decoded event so handlers dispatch on a closed set of
// cases rather than a string event name. The map form ABI decoding
// produces is only a convenience at that boundary; handlers dispatch
// on the tag, never on string keys.
type Kind string

const (
	KindWalletCreated                 Kind = "WalletCreated"
	KindWalletRegistered              Kind = "WalletRegistered"
	KindTransactionProposed           Kind = "TransactionProposed"
	KindTransactionApproved           Kind = "TransactionApproved"
	KindApprovalRevoked               Kind = "ApprovalRevoked"
	KindTransactionExecuted           Kind = "TransactionExecuted"
	KindTransactionCancelled          Kind = "TransactionCancelled"
	KindOwnerAdded                    Kind = "OwnerAdded"
	KindOwnerRemoved                  Kind = "OwnerRemoved"
	KindThresholdChanged              Kind = "ThresholdChanged"
	KindModuleEnabled                 Kind = "ModuleEnabled"
	KindModuleDisabled                Kind = "ModuleDisabled"
	KindReceived                      Kind = "Received"
	KindRecoverySetup                 Kind = "RecoverySetup"
	KindRecoveryInitiated             Kind = "RecoveryInitiated"
	KindRecoveryApproved              Kind = "RecoveryApproved"
	KindRecoveryApprovalRevoked       Kind = "RecoveryApprovalRevoked"
	KindRecoveryExecuted              Kind = "RecoveryExecuted"
	KindRecoveryCancelled             Kind = "RecoveryCancelled"
	KindDailyLimitSet                 Kind = "DailyLimitSet"
	KindDailyLimitReset               Kind = "DailyLimitReset"
	KindDailyLimitTransactionExecuted Kind = "DailyLimitTransactionExecuted"
	KindAddressWhitelisted            Kind = "AddressWhitelisted"
	KindAddressRemovedFromWhitelist   Kind = "AddressRemovedFromWhitelist"
	KindWhitelistTransactionExecuted  Kind = "WhitelistTransactionExecuted"
)

// LogMeta is embedded in every decoded event: the chain coordinates
// needed to place it in the scanner's deterministic merge order and to
// populate the store's block/tx columns.
type LogMeta struct {
	Address     common.Address
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// Event is the tagged-union interface every decoded event implements.
type Event interface {
	Kind() Kind
	Meta() LogMeta
}

type base struct {
	kind Kind
	meta LogMeta
}

func (b base) Kind() Kind    { return b.kind }
func (b base) Meta() LogMeta { return b.meta }

type WalletCreatedEvent struct {
	base
	Wallet    common.Address
	Owners    []common.Address
	Threshold string // decimal string, 256-bit precision
	Deployer  common.Address
	Salt      common.Hash
}

type WalletRegisteredEvent struct {
	base
	Wallet    common.Address
	Registrar common.Address
}

type TransactionProposedEvent struct {
	base
	TxID     common.Hash
	Proposer common.Address
	To       common.Address
	Value    string
	Data     []byte
}

type TransactionApprovedEvent struct {
	base
	TxID  common.Hash
	Owner common.Address
}

type ApprovalRevokedEvent struct {
	base
	TxID  common.Hash
	Owner common.Address
}

type TransactionExecutedEvent struct {
	base
	TxID     common.Hash
	Executor common.Address
}

type TransactionCancelledEvent struct {
	base
	TxID     common.Hash
	Executor common.Address
}

type OwnerAddedEvent struct {
	base
	Owner common.Address
}

type OwnerRemovedEvent struct {
	base
	Owner common.Address
}

type ThresholdChangedEvent struct {
	base
	NewThreshold string
}

type ModuleEnabledEvent struct {
	base
	Module common.Address
}

type ModuleDisabledEvent struct {
	base
	Module common.Address
}

type ReceivedEvent struct {
	base
	Sender common.Address
	Amount string
}

type RecoverySetupEvent struct {
	base
	Wallet         common.Address
	Guardians      []common.Address
	Threshold      string
	RecoveryPeriod string
}

type RecoveryInitiatedEvent struct {
	base
	Wallet       common.Address
	RecoveryHash common.Hash
	NewOwners    []common.Address
	NewThreshold string
	Initiator    common.Address
}

type RecoveryApprovedEvent struct {
	base
	Wallet       common.Address
	RecoveryHash common.Hash
	Guardian     common.Address
}

type RecoveryApprovalRevokedEvent struct {
	base
	Wallet       common.Address
	RecoveryHash common.Hash
	Guardian     common.Address
}

type RecoveryExecutedEvent struct {
	base
	Wallet       common.Address
	RecoveryHash common.Hash
}

type RecoveryCancelledEvent struct {
	base
	Wallet       common.Address
	RecoveryHash common.Hash
}

type DailyLimitSetEvent struct {
	base
	Wallet   common.Address
	NewLimit string
}

type DailyLimitResetEvent struct {
	base
	Wallet common.Address
}

// DailyLimitTransactionExecutedEvent is the module-emitted
// TransactionExecuted(address,address,uint256,uint256) — a distinct
// topic0 from the wallet's TransactionExecuted(bytes32,address) despite
// the shared name; see DESIGN.md for the disambiguation rationale.
type DailyLimitTransactionExecutedEvent struct {
	base
	Wallet         common.Address
	To             common.Address
	Value          string
	RemainingLimit string
}

type AddressWhitelistedEvent struct {
	base
	Wallet      common.Address
	Whitelisted common.Address
	Limit       string
}

type AddressRemovedFromWhitelistEvent struct {
	base
	Wallet      common.Address
	Whitelisted common.Address
}

type WhitelistTransactionExecutedEvent struct {
	base
	Wallet common.Address
	To     common.Address
	Value  string
}

// TransactionType classifies a proposed transaction's calldata.
type TransactionType string

const (
	TxTypeTransfer      TransactionType = "transfer"
	TxTypeModuleConfig  TransactionType = "module_config"
	TxTypeWalletAdmin   TransactionType = "wallet_admin"
	TxTypeRecoverySetup TransactionType = "recovery_setup"
	TxTypeExternalCall  TransactionType = "external_call"
	TxTypeUnknown       TransactionType = "unknown"
)

// TxParams is the calldata decoder's output: a typed enum internally,
// serialised to the store's decodedParams JSON column at the boundary.
// decodedParams stays the only JSON-typed field in the schema, but is
// carried as a typed struct everywhere else.
type TxParams struct {
	Type     TransactionType
	Function string
	Args     map[string]any
}
