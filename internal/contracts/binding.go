// internal/contracts/binding.go
package contracts

import (
	"context"
	"math/big"

	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"
	"ticket-mirror/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// WriteOpts tunes a single contract write. Nil means defaults.
type WriteOpts struct {
	// OnBroadcast fires once the wallet accepts the transaction for
	// broadcast, before the confirmation wait starts.
	OnBroadcast func(txHash string)
	// MinConfirmations overrides the binding's default depth when > 0.
	MinConfirmations int
}

// binding is the shared base for the three contract bindings: ABI packing,
// read calls through the gateway, and the uniform write path.
type binding struct {
	gw            *gateway.Gateway
	address       common.Address
	abi           abi.ABI
	logger        *zap.Logger
	confirmations int
}

// call executes a read-only method and returns the raw unpacked outputs.
func (b *binding) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to pack "+method, err)
	}

	out, err := b.gw.Call(ctx, ethereum.CallMsg{To: &b.address, Data: data})
	if err != nil {
		return nil, err
	}
	// Empty result: the address has never interacted with the contract, or
	// the node pruned the state. Callers decide what zero means.
	if len(out) == 0 {
		return nil, nil
	}

	values, err := b.abi.Unpack(method, out)
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, "failed to unpack "+method, err)
	}
	return values, nil
}

// send submits a state-changing method through the wallet and waits for
// confirmation, returning the uniform result envelope. All failure modes
// (user rejection, revert, out-of-gas, network drop) are normalized; no raw
// provider error reaches the caller.
func (b *binding) send(ctx context.Context, from, method string, value *big.Int, opts *WriteOpts, args ...interface{}) domain.CallResult {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return domain.FailedCall(domain.WrapError(domain.KindInternal, "failed to pack "+method, err))
	}

	txHash, err := b.gw.Submit(ctx, gateway.TxRequest{
		From:  common.HexToAddress(from),
		To:    &b.address,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return domain.FailedCall(err)
	}

	if opts != nil && opts.OnBroadcast != nil {
		opts.OnBroadcast(txHash)
	}

	minConf := b.confirmations
	if opts != nil && opts.MinConfirmations > 0 {
		minConf = opts.MinConfirmations
	}

	receipt, err := b.gw.AwaitConfirmation(ctx, txHash, minConf)
	result := domain.CallResult{TxHash: txHash}
	if receipt != nil {
		if receipt.BlockNumber != nil {
			result.BlockNumber = utils.Int64Ptr(receipt.BlockNumber.Int64())
		}
		result.GasUsed = utils.Uint64Ptr(receipt.GasUsed)
	}
	if err != nil {
		result.Err = gateway.Classify(err, method)
		b.logger.Warn("Contract write failed",
			zap.String("method", method),
			zap.String("tx_hash", txHash),
			zap.Error(err))
		return result
	}

	result.Success = true
	b.logger.Info("Contract write confirmed",
		zap.String("method", method),
		zap.String("tx_hash", txHash))
	return result
}

// Helpers for asserting unpacked output values.

func asBig(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return big.NewInt(0)
}

func asAddress(v interface{}) string {
	if a, ok := v.(common.Address); ok {
		return a.Hex()
	}
	return ""
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asUint32(v interface{}) uint32 {
	switch n := v.(type) {
	case uint32:
		return n
	case *big.Int:
		return uint32(n.Uint64())
	}
	return 0
}

func asUint8(v interface{}) uint8 {
	switch n := v.(type) {
	case uint8:
		return n
	case *big.Int:
		return uint8(n.Uint64())
	}
	return 0
}
