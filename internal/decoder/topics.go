package decoder

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// topicsOf collects every event's topic0 out of an ABI table. Map
// iteration order is unspecified, so the scanner must not rely on the
// returned order — it only matters as an unordered allow-list for
// eth_getLogs' topic0 filter.
func topicsOf(table abi.ABI) []common.Hash {
	out := make([]common.Hash, 0, len(table.Events))
	for _, ev := range table.Events {
		out = append(out, ev.ID)
	}
	return out
}

// FactoryTopics returns the topic0 allow-list for factory-emitted events.
func FactoryTopics() []common.Hash { return topicsOf(factoryABI) }

// WalletTopics returns the topic0 allow-list for wallet-emitted events.
func WalletTopics() []common.Hash { return topicsOf(walletABI) }

// ModuleTopics returns the topic0 allow-list for module-emitted events.
func ModuleTopics() []common.Hash { return topicsOf(moduleABI) }
