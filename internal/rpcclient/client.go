// Package rpcclient is the indexer's typed JSON-RPC client for the
// target chain. The chain is a UTXO/EVM hybrid (modeled on Quai
// Network's work-object header shape), so method names carry a
// configurable prefix rather than the hardcoded "eth_" go-ethereum's
// ethclient.Client assumes — this package talks to *rpc.Client directly,
// the same low-level client ethclient wraps, and layers typed calls,
// rate limiting, retry, and timestamp caching on top.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Options configures a Client.
type Options struct {
	URL string
	// MethodPrefix is prepended to every JSON-RPC method, e.g. "quai" for
	// "quai_blockNumber". Defaults to "quai".
	MethodPrefix string

	RateLimitN        int
	RateLimitWindowMS int

	RetryMaxAttempts int
	RetryBaseMS      int
	RetryMultiplier  float64
	RetryCeilingMS   int

	TimestampCacheSize int

	Log *logrus.Logger
}

// Client is the indexer's RPC surface: blockNumber, getLogs, call, and a
// cached blockTimestamp helper.
type Client struct {
	raw    *rpc.Client
	prefix string

	limiter *slidingWindowLimiter
	retry   retryPolicy

	tsCache *lru.Cache[uint64, uint64]

	log *logrus.Logger
}

// Dial connects to opts.URL and returns a ready Client.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	raw, err := rpc.DialContext(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial %s: %w", opts.URL, err)
	}

	prefix := opts.MethodPrefix
	if prefix == "" {
		prefix = "quai"
	}

	cacheSize := opts.TimestampCacheSize
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	cache, err := lru.New[uint64, uint64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: building timestamp cache: %w", err)
	}

	log := opts.Log
	if log == nil {
		log = logrus.New()
	}

	n := opts.RateLimitN
	if n <= 0 {
		n = 50
	}
	windowMS := opts.RateLimitWindowMS
	if windowMS <= 0 {
		windowMS = 1000
	}

	attempts := opts.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	baseMS := opts.RetryBaseMS
	if baseMS <= 0 {
		baseMS = 1000
	}
	mult := opts.RetryMultiplier
	if mult <= 0 {
		mult = 2
	}
	ceilingMS := opts.RetryCeilingMS
	if ceilingMS <= 0 {
		ceilingMS = 30000
	}

	return &Client{
		raw:    raw,
		prefix: prefix,
		limiter: newSlidingWindowLimiter(n, windowMS),
		retry: retryPolicy{
			maxAttempts: attempts,
			baseMS:      baseMS,
			multiplier:  mult,
			ceilingMS:   ceilingMS,
		},
		tsCache: cache,
		log:     log,
	}, nil
}

func (c *Client) Close() { c.raw.Close() }

func (c *Client) method(name string) string { return c.prefix + "_" + name }

// call issues a single rate-limited, retried JSON-RPC call.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	return c.retry.do(ctx, c.log, method, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return c.raw.CallContext(ctx, result, c.method(method), args...)
	})
}

// BlockNumber returns the current chain tip.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, &result, "blockNumber"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// logFilter mirrors the eth_getLogs request object; addresses are
// lowercased before being placed on the wire because some providers
// filter case-sensitively.
type logFilter struct {
	Address   any      `json:"address,omitempty"`
	Topics    []any    `json:"topics,omitempty"`
	FromBlock string   `json:"fromBlock,omitempty"`
	ToBlock   string   `json:"toBlock,omitempty"`
}

// GetLogs fetches logs for one or more addresses over [fromBlock,
// toBlock], with an optional topic0 allow-list (topics beyond position 0
// are left unconstrained; decoding narrows further downstream).
func (c *Client) GetLogs(ctx context.Context, addresses []common.Address, topic0 []common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	filter := logFilter{
		FromBlock: hexutil.EncodeUint64(fromBlock),
		ToBlock:   hexutil.EncodeUint64(toBlock),
	}

	switch len(addresses) {
	case 0:
	case 1:
		filter.Address = lowercaseHex(addresses[0].Hex())
	default:
		addrs := make([]string, len(addresses))
		for i, a := range addresses {
			addrs[i] = lowercaseHex(a.Hex())
		}
		filter.Address = addrs
	}

	if len(topic0) > 0 {
		ors := make([]string, len(topic0))
		for i, t := range topic0 {
			ors[i] = t.Hex()
		}
		filter.Topics = []any{ors}
	}

	// The raw-to-typed decode happens inside the retried closure, not
	// after it returns: a malformed payload is a transient condition
	// (upstream proxies sometimes return truncated JSON), so it must
	// re-enter the backoff loop exactly like a transport error rather
	// than surfacing straight to the caller.
	var logs []types.Log
	err := c.retry.do(ctx, c.log, "getLogs", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var raw json.RawMessage
		if err := c.raw.CallContext(ctx, &raw, c.method("getLogs"), filter); err != nil {
			return err
		}
		if raw == nil {
			logs = nil
			return nil
		}
		var decoded []types.Log
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return &MalformedResponseError{Method: "getLogs", Cause: err}
		}
		logs = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// Call performs a read-only contract call, used for reading getOwners()/
// threshold() off late-discovered wallets. blockNumber is nil for
// "latest".
func (c *Client) Call(ctx context.Context, to common.Address, data []byte, blockNumber *uint64) ([]byte, error) {
	callArgs := map[string]any{
		"to":   lowercaseHex(to.Hex()),
		"data": hexutil.Encode(data),
	}
	tag := "latest"
	if blockNumber != nil {
		tag = hexutil.EncodeUint64(*blockNumber)
	}

	var result hexutil.Bytes
	if err := c.call(ctx, &result, "call", callArgs, tag); err != nil {
		return nil, err
	}
	return result, nil
}

// rpcBlock is the subset of a getBlockByNumber response this package
// cares about: a work-object header nested under "woHeader", or (on
// chains without the hybrid header) a top-level "timestamp".
type rpcBlock struct {
	Timestamp *hexutil.Uint64 `json:"timestamp"`
	WOHeader  *struct {
		Timestamp *hexutil.Uint64 `json:"timestamp"`
	} `json:"woHeader"`
}

// BlockTimestamp returns the unix-second timestamp of blockNumber,
// preferring the nested woHeader.timestamp over a top-level timestamp,
// and serving repeat lookups from an LRU cache (re-inserted on hit to
// stay MRU).
func (c *Client) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	if ts, ok := c.tsCache.Get(blockNumber); ok {
		c.tsCache.Add(blockNumber, ts) // refresh recency
		return ts, nil
	}

	// As in GetLogs, decoding happens inside the retried closure so a
	// malformed block payload re-enters backoff instead of failing the
	// call outright.
	var ts uint64
	err := c.retry.do(ctx, c.log, "getBlockByNumber", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var raw json.RawMessage
		if err := c.raw.CallContext(ctx, &raw, c.method("getBlockByNumber"), hexutil.EncodeUint64(blockNumber), false); err != nil {
			return err
		}
		if raw == nil || string(raw) == "null" {
			return fmt.Errorf("rpcclient: block %d not found or missing timestamp", blockNumber)
		}

		var block rpcBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			return &MalformedResponseError{Method: "getBlockByNumber", Cause: err}
		}

		switch {
		case block.WOHeader != nil && block.WOHeader.Timestamp != nil:
			ts = uint64(*block.WOHeader.Timestamp)
		case block.Timestamp != nil:
			ts = uint64(*block.Timestamp)
		default:
			return fmt.Errorf("rpcclient: block not found or missing timestamp")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.tsCache.Add(blockNumber, ts)
	return ts, nil
}

func lowercaseHex(s string) string { return strings.ToLower(s) }
