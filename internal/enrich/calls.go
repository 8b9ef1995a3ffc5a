package enrich

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller issues read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// fetchText reads a string-returning token method, falling back to the
// bytes32 variant some older tokens expose.
func fetchText(ctx context.Context, caller Caller, to common.Address, method string) (string, error) {
	stringABI, err := erc20StringABIInstance()
	if err != nil {
		return "", fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, strErr := callMethod(ctx, caller, to, stringABI, method)
	if strErr == nil {
		if s, ok := values[0].(string); ok {
			return s, nil
		}
		strErr = fmt.Errorf("%s: unexpected type %T", method, values[0])
	}

	bytes32ABI, err := erc20Bytes32ABIInstance()
	if err != nil {
		return "", fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	if _, ok := bytes32ABI.Methods[method]; !ok {
		return "", strErr
	}
	values, b32Err := callMethod(ctx, caller, to, bytes32ABI, method)
	if b32Err != nil {
		return "", strErr
	}
	if s, ok := bytes32ToString(values[0]); ok {
		return s, nil
	}
	return "", strErr
}

// fetchDecimals reads the token's decimals.
func fetchDecimals(ctx context.Context, caller Caller, to common.Address) (int32, error) {
	stringABI, err := erc20StringABIInstance()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, err := callMethod(ctx, caller, to, stringABI, "decimals")
	if err != nil {
		return 0, err
	}
	d, err := asUint8(values[0])
	if err != nil {
		return 0, err
	}
	return int32(d), nil
}

// fetchPairToken reads token0 or token1 from a pair contract.
func fetchPairToken(ctx context.Context, caller Caller, pool common.Address, method string) (common.Address, error) {
	parsed, err := pairABIInstance()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, parsed, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, err)
	}
	return addr, nil
}

// fetchReserves reads both reserve legs in one getReserves call.
func fetchReserves(ctx context.Context, caller Caller, pool common.Address) (*big.Int, *big.Int, error) {
	parsed, err := pairABIInstance()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, parsed, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 2 {
		return nil, nil, fmt.Errorf("getReserves return size %d", len(values))
	}
	r0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, fmt.Errorf("reserve0: %w", err)
	}
	r1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, fmt.Errorf("reserve1: %w", err)
	}
	return r0, r1, nil
}

// fetchBalance reads balanceOf(owner) on token.
func fetchBalance(ctx context.Context, caller Caller, token, owner common.Address) (*big.Int, error) {
	parsed, err := balanceOfABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse balanceOf abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
