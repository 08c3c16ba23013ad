// internal/contracts/flt.go
package contracts

import (
	"context"
	"math/big"
	"strings"

	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// FLT wraps the platform's ERC-20 token contract, including its staking
// extension.
type FLT struct {
	binding
}

func NewFLT(gw *gateway.Gateway, address string, confirmations int, logger *zap.Logger) (*FLT, error) {
	parsed, err := abi.JSON(strings.NewReader(FLTTokenABI))
	if err != nil {
		return nil, err
	}
	return &FLT{
		binding: binding{
			gw:            gw,
			address:       common.HexToAddress(address),
			abi:           parsed,
			logger:        logger,
			confirmations: confirmations,
		},
	}, nil
}

// Address returns the token contract address, used as the spender check
// target when approving ticket purchases.
func (f *FLT) Address() string {
	return f.address.Hex()
}

// ============================================================================
// Read methods
// ============================================================================

func (f *FLT) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	return f.readBig(ctx, "balanceOf", common.HexToAddress(owner))
}

func (f *FLT) Allowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return f.readBig(ctx, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
}

func (f *FLT) StakedBalance(ctx context.Context, owner string) (*big.Int, error) {
	return f.readBig(ctx, "stakedBalance", common.HexToAddress(owner))
}

func (f *FLT) PendingRewards(ctx context.Context, owner string) (*big.Int, error) {
	return f.readBig(ctx, "pendingRewards", common.HexToAddress(owner))
}

func (f *FLT) readBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := f.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return asBig(out[0]), nil
}

// ============================================================================
// Write methods
// ============================================================================

// Approve grants spender the right to move amount of the caller's tokens.
func (f *FLT) Approve(ctx context.Context, from, spender string, amount *big.Int, opts *WriteOpts) domain.CallResult {
	return f.send(ctx, from, "approve", nil, opts, common.HexToAddress(spender), amount)
}

// Transfer moves tokens to another address.
func (f *FLT) Transfer(ctx context.Context, from, to string, amount *big.Int, opts *WriteOpts) domain.CallResult {
	return f.send(ctx, from, "transfer", nil, opts, common.HexToAddress(to), amount)
}

// Stake locks amount of the caller's liquid balance.
func (f *FLT) Stake(ctx context.Context, from string, amount *big.Int, opts *WriteOpts) domain.CallResult {
	return f.send(ctx, from, "stake", nil, opts, amount)
}

// Unstake releases amount back to the liquid balance.
func (f *FLT) Unstake(ctx context.Context, from string, amount *big.Int, opts *WriteOpts) domain.CallResult {
	return f.send(ctx, from, "unstake", nil, opts, amount)
}

// ClaimRewards pays out all accrued staking rewards.
func (f *FLT) ClaimRewards(ctx context.Context, from string, opts *WriteOpts) domain.CallResult {
	return f.send(ctx, from, "claimRewards", nil, opts)
}
