package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// maxAddressArrayLen bounds the decoded length of an ABI-encoded
// address[] before any allocation happens, so a corrupt or adversarial
// calldata blob with a huge declared length can't be used to force a
// large allocation.
const maxAddressArrayLen = 1000

// ClassifyCalldata implements the four calldata rules of a proposed
// transaction: empty data is a plain transfer, a recognised selector is
// decoded against calldataABI, an unrecognised selector addressed at
// one of the configured module addresses is module configuration with
// the raw bytes kept for audit, and anything else is an opaque external
// call.
func ClassifyCalldata(data []byte, to common.Address, moduleAddresses map[common.Address]bool) TxParams {
	if len(data) == 0 {
		return TxParams{Type: TxTypeTransfer, Function: "", Args: nil}
	}

	if len(data) >= 4 {
		if method, ok := lookupSelector(data[:4]); ok {
			txType := classifyFunction(method.Name)
			args, err := decodeFunctionArgs(method, data[4:])
			if err != nil {
				// The selector is recognised, so the classification
				// stands even when the argument bytes don't unpack; the
				// raw calldata is kept for audit instead.
				return TxParams{Type: txType, Function: "unknown", Args: rawDataArgs(data)}
			}
			return TxParams{Type: txType, Function: method.Name, Args: args}
		}
	}

	if moduleAddresses[to] {
		return TxParams{Type: TxTypeModuleConfig, Function: "", Args: rawDataArgs(data)}
	}

	return TxParams{Type: TxTypeExternalCall, Function: "", Args: rawDataArgs(data)}
}

func rawDataArgs(data []byte) map[string]any {
	return map[string]any{"rawData": hexutil.Encode(data)}
}

func lookupSelector(selector []byte) (abi.Method, bool) {
	for _, m := range calldataABI.Methods {
		if bytes.Equal(m.ID, selector) {
			return m, true
		}
	}
	return abi.Method{}, false
}

// decodeFunctionArgs unpacks the calldata arguments and flattens every
// value to strings (or string slices), matching how decoded params flow
// through the store as text to keep 256-bit precision.
func decodeFunctionArgs(method abi.Method, data []byte) (map[string]any, error) {
	raw := make(map[string]any)
	if err := method.Inputs.UnpackIntoMap(raw, data); err != nil {
		return nil, fmt.Errorf("calldata: unpacking %s: %w", method.Name, err)
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = stringifyArg(v)
	}
	return out, nil
}

func stringifyArg(v any) any {
	switch t := v.(type) {
	case *big.Int:
		return t.String()
	case common.Address:
		return strings.ToLower(t.Hex())
	case common.Hash:
		return strings.ToLower(t.Hex())
	case [32]byte:
		return strings.ToLower(common.Hash(t).Hex())
	case []byte:
		return hexutil.Encode(t)
	case []common.Address:
		out := make([]string, len(t))
		for i, a := range t {
			out[i] = strings.ToLower(a.Hex())
		}
		return out
	case []*big.Int:
		out := make([]string, len(t))
		for i, n := range t {
			out[i] = n.String()
		}
		return out
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func classifyFunction(name string) TransactionType {
	switch name {
	case "addOwner", "removeOwner", "changeThreshold":
		return TxTypeWalletAdmin
	case "enableModule", "disableModule":
		return TxTypeWalletAdmin
	case "setupRecovery":
		return TxTypeRecoverySetup
	case "transfer":
		return TxTypeTransfer
	default:
		return TxTypeUnknown
	}
}

// DecodeAddressArray manually walks the standard ABI dynamic-array
// return encoding (32-byte head offset, 32-byte length, then the
// right-padded 20-byte addresses) instead of going through abi.Unpack,
// because the late-discovery wallet-registration handler receives this
// blob as a bare getOwners() return value detached from any function or
// event signature — there is no abi.Type to hand the generic unpacker.
// A declared length over maxAddressArrayLen or a length that claims
// more addresses than the data actually holds is rejected rather than
// truncated or silently accepted.
func DecodeAddressArray(data []byte) ([]common.Address, error) {
	const wordSize = 32
	if len(data) < 2*wordSize {
		return nil, fmt.Errorf("decoder: address array truncated: need %d bytes for offset+length words, got %d", 2*wordSize, len(data))
	}

	// data[0:32] is the head offset word; the tail (length + entries)
	// starts at that offset. A well-formed single-return-value encoding
	// always has offset == 32, but some providers tolerate degenerate
	// encodings, so the offset is read rather than assumed.
	offsetWord := data[:wordSize]
	for _, b := range offsetWord[:wordSize-8] {
		if b != 0 {
			return nil, fmt.Errorf("decoder: address array offset word overflows uint64")
		}
	}
	offset := int(binary.BigEndian.Uint64(offsetWord[wordSize-8:]))
	if offset < 0 || offset+wordSize > len(data) {
		return nil, fmt.Errorf("decoder: address array offset %d out of range for %d-byte payload", offset, len(data))
	}

	lengthWord := data[offset : offset+wordSize]
	for _, b := range lengthWord[:wordSize-8] {
		if b != 0 {
			return nil, fmt.Errorf("decoder: address array length word overflows uint64")
		}
	}
	length := binary.BigEndian.Uint64(lengthWord[wordSize-8:])

	if length > maxAddressArrayLen {
		return nil, fmt.Errorf("decoder: address array length %d exceeds maximum %d", length, maxAddressArrayLen)
	}

	entriesStart := offset + wordSize
	need := entriesStart + int(length)*wordSize
	if len(data) < need {
		return nil, fmt.Errorf("decoder: address array truncated: need %d bytes for %d entries, got %d", need, length, len(data))
	}

	out := make([]common.Address, 0, length)
	for i := uint64(0); i < length; i++ {
		start := entriesStart + int(i)*wordSize
		word := data[start : start+wordSize]
		for _, b := range word[:wordSize-20] {
			if b != 0 {
				return nil, fmt.Errorf("decoder: address array entry %d has non-zero padding", i)
			}
		}
		var addr common.Address
		copy(addr[:], word[wordSize-20:])
		out = append(out, addr)
	}

	return out, nil
}
