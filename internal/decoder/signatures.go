package decoder

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event signatures are registered as ABI JSON fragments and parsed once
// at package init: topic0 is then abi.Events[name].ID, not a hand-hashed
// keccak256 string, so the signature hash is always correct for the
// declared argument types.

const factoryEventsJSON = `[
  {"anonymous": false, "name": "WalletCreated", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",   "type": "address"},
    {"indexed": false, "name": "owners",   "type": "address[]"},
    {"indexed": false, "name": "threshold","type": "uint256"},
    {"indexed": false, "name": "deployer", "type": "address"},
    {"indexed": false, "name": "salt",     "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "WalletRegistered", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",     "type": "address"},
    {"indexed": false, "name": "registrar",  "type": "address"}
  ]}
]`

const walletEventsJSON = `[
  {"anonymous": false, "name": "TransactionProposed", "type": "event", "inputs": [
    {"indexed": true,  "name": "txHash",   "type": "bytes32"},
    {"indexed": true,  "name": "proposer", "type": "address"},
    {"indexed": false, "name": "to",       "type": "address"},
    {"indexed": false, "name": "value",    "type": "uint256"},
    {"indexed": false, "name": "data",     "type": "bytes"}
  ]},
  {"anonymous": false, "name": "TransactionApproved", "type": "event", "inputs": [
    {"indexed": true, "name": "txHash", "type": "bytes32"},
    {"indexed": true, "name": "owner",  "type": "address"}
  ]},
  {"anonymous": false, "name": "ApprovalRevoked", "type": "event", "inputs": [
    {"indexed": true, "name": "txHash", "type": "bytes32"},
    {"indexed": true, "name": "owner",  "type": "address"}
  ]},
  {"anonymous": false, "name": "TransactionExecuted", "type": "event", "inputs": [
    {"indexed": true, "name": "txHash",   "type": "bytes32"},
    {"indexed": true, "name": "executor", "type": "address"}
  ]},
  {"anonymous": false, "name": "TransactionCancelled", "type": "event", "inputs": [
    {"indexed": true, "name": "txHash",   "type": "bytes32"},
    {"indexed": true, "name": "executor", "type": "address"}
  ]},
  {"anonymous": false, "name": "OwnerAdded", "type": "event", "inputs": [
    {"indexed": true, "name": "owner", "type": "address"}
  ]},
  {"anonymous": false, "name": "OwnerRemoved", "type": "event", "inputs": [
    {"indexed": true, "name": "owner", "type": "address"}
  ]},
  {"anonymous": false, "name": "ThresholdChanged", "type": "event", "inputs": [
    {"indexed": false, "name": "newThreshold", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "ModuleEnabled", "type": "event", "inputs": [
    {"indexed": true, "name": "module", "type": "address"}
  ]},
  {"anonymous": false, "name": "ModuleDisabled", "type": "event", "inputs": [
    {"indexed": true, "name": "module", "type": "address"}
  ]},
  {"anonymous": false, "name": "Received", "type": "event", "inputs": [
    {"indexed": true,  "name": "sender", "type": "address"},
    {"indexed": false, "name": "amount", "type": "uint256"}
  ]}
]`

// moduleEventsJSON covers all three configured modules (daily limit,
// whitelist, social recovery). Fetched together and disambiguated by
// emitter address, not by event name alone — see DESIGN.md for the
// TransactionExecuted name-collision resolution.
const moduleEventsJSON = `[
  {"anonymous": false, "name": "RecoverySetup", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",         "type": "address"},
    {"indexed": false, "name": "guardians",      "type": "address[]"},
    {"indexed": false, "name": "threshold",      "type": "uint256"},
    {"indexed": false, "name": "recoveryPeriod", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "RecoveryInitiated", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",       "type": "address"},
    {"indexed": true,  "name": "recoveryHash", "type": "bytes32"},
    {"indexed": false, "name": "newOwners",    "type": "address[]"},
    {"indexed": false, "name": "newThreshold", "type": "uint256"},
    {"indexed": false, "name": "initiator",    "type": "address"}
  ]},
  {"anonymous": false, "name": "RecoveryApproved", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",       "type": "address"},
    {"indexed": true,  "name": "recoveryHash", "type": "bytes32"},
    {"indexed": false, "name": "guardian",     "type": "address"}
  ]},
  {"anonymous": false, "name": "RecoveryApprovalRevoked", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",       "type": "address"},
    {"indexed": true,  "name": "recoveryHash", "type": "bytes32"},
    {"indexed": false, "name": "guardian",     "type": "address"}
  ]},
  {"anonymous": false, "name": "RecoveryExecuted", "type": "event", "inputs": [
    {"indexed": true, "name": "wallet",       "type": "address"},
    {"indexed": true, "name": "recoveryHash", "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "RecoveryCancelled", "type": "event", "inputs": [
    {"indexed": true, "name": "wallet",       "type": "address"},
    {"indexed": true, "name": "recoveryHash", "type": "bytes32"}
  ]},
  {"anonymous": false, "name": "DailyLimitSet", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",   "type": "address"},
    {"indexed": false, "name": "newLimit", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "DailyLimitReset", "type": "event", "inputs": [
    {"indexed": true, "name": "wallet", "type": "address"}
  ]},
  {"anonymous": false, "name": "TransactionExecuted", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",         "type": "address"},
    {"indexed": false, "name": "to",             "type": "address"},
    {"indexed": false, "name": "value",          "type": "uint256"},
    {"indexed": false, "name": "remainingLimit", "type": "uint256"}
  ]},
  {"anonymous": false, "name": "AddressWhitelisted", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet",      "type": "address"},
    {"indexed": true,  "name": "whitelisted", "type": "address"},
    {"indexed": false, "name": "limit",       "type": "uint256"}
  ]},
  {"anonymous": false, "name": "AddressRemovedFromWhitelist", "type": "event", "inputs": [
    {"indexed": true, "name": "wallet",      "type": "address"},
    {"indexed": true, "name": "whitelisted", "type": "address"}
  ]},
  {"anonymous": false, "name": "WhitelistTransactionExecuted", "type": "event", "inputs": [
    {"indexed": true,  "name": "wallet", "type": "address"},
    {"indexed": false, "name": "to",     "type": "address"},
    {"indexed": false, "name": "value",  "type": "uint256"}
  ]}
]`

// calldataFunctionsJSON is the table of proposed-transaction call
// signatures the decoder recognises. Each entry's transactionType is
// looked up by name in classifyFunction (signatures.go keeps the ABI,
// calldata.go keeps the classification and decode logic).
const calldataFunctionsJSON = `[
  {"name": "addOwner",       "type": "function", "inputs": [{"name": "owner",     "type": "address"}]},
  {"name": "removeOwner",    "type": "function", "inputs": [{"name": "owner",     "type": "address"}]},
  {"name": "changeThreshold","type": "function", "inputs": [{"name": "threshold", "type": "uint256"}]},
  {"name": "enableModule",   "type": "function", "inputs": [{"name": "module",    "type": "address"}]},
  {"name": "disableModule",  "type": "function", "inputs": [{"name": "module",    "type": "address"}]},
  {"name": "setupRecovery",  "type": "function", "inputs": [
    {"name": "guardians", "type": "address[]"},
    {"name": "threshold", "type": "uint256"},
    {"name": "recoveryPeriod", "type": "uint256"}
  ]},
  {"name": "transfer", "type": "function", "inputs": [
    {"name": "to",     "type": "address"},
    {"name": "amount", "type": "uint256"}
  ]}
]`

var (
	factoryABI  abi.ABI
	walletABI   abi.ABI
	moduleABI   abi.ABI
	calldataABI abi.ABI
)

func mustParseABI(jsonStr string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		panic("decoder: invalid ABI fragment: " + err.Error())
	}
	return parsed
}

func init() {
	factoryABI = mustParseABI(factoryEventsJSON)
	walletABI = mustParseABI(walletEventsJSON)
	moduleABI = mustParseABI(moduleEventsJSON)
	calldataABI = mustParseABI(calldataFunctionsJSON)
}
