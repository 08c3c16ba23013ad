// internal/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"ticket-mirror/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnsupported       = 4200
	codeDisconnected      = 4900
	codeChainDisconnected = 4901
	codeUnknownChain      = 4902
)

// Options bound the gateway's polling and retry behavior.
type Options struct {
	ReadRetries    int
	ReadBackoff    time.Duration
	ReceiptPoll    time.Duration
	ConfirmTimeout time.Duration
	MaxGasPrice    *big.Int
	GasLimitCall   uint64 // fallback when estimation fails
}

func (o *Options) withDefaults() {
	if o.ReadRetries == 0 {
		o.ReadRetries = 3
	}
	if o.ReadBackoff == 0 {
		o.ReadBackoff = 500 * time.Millisecond
	}
	if o.ReceiptPoll == 0 {
		o.ReceiptPoll = 2 * time.Second
	}
	if o.ConfirmTimeout == 0 {
		o.ConfirmTimeout = 5 * time.Minute
	}
	if o.GasLimitCall == 0 {
		o.GasLimitCall = 300_000
	}
}

// Gateway owns the single connection to the external ledger. Pure RPC
// facade: account discovery, network negotiation, balance queries,
// transaction submission, confirmation polling. No business state.
type Gateway struct {
	provider Provider
	logger   *zap.Logger
	opts     Options
}

func New(provider Provider, logger *zap.Logger, opts Options) *Gateway {
	opts.withDefaults()
	return &Gateway{provider: provider, logger: logger, opts: opts}
}

// Connect requests account access from the external wallet and returns the
// active account address.
func (g *Gateway) Connect(ctx context.Context) (string, error) {
	if g.provider == nil {
		return "", domain.NewError(domain.KindProviderUnavailable, "no wallet provider available")
	}

	accounts, err := g.provider.RequestAccounts(ctx)
	if err != nil {
		if rpcErrorCode(err) == codeUserRejected {
			return "", domain.WrapError(domain.KindUserRejected, "user rejected the connection request", err)
		}
		return "", Classify(err, "request accounts")
	}
	if len(accounts) == 0 {
		return "", domain.NewError(domain.KindNoAccounts, "wallet has no accounts")
	}

	addr := accounts[0].Hex()
	g.logger.Info("Wallet connected", zap.String("address", addr))
	return addr, nil
}

// EnsureNetwork checks the active chain and, if mismatched, switches to the
// target; if the wallet does not know the target network it is registered
// first, then switched to.
func (g *Gateway) EnsureNetwork(ctx context.Context, target ChainDefinition) error {
	current, err := g.provider.ChainID(ctx)
	if err != nil {
		return Classify(err, "get chain id")
	}
	if current.Cmp(target.ChainID) == 0 {
		return nil
	}

	g.logger.Info("Network mismatch, switching",
		zap.String("current", current.String()),
		zap.String("target", target.ChainID.String()))

	if err := g.provider.SwitchChain(ctx, target.ChainID); err != nil {
		switch rpcErrorCode(err) {
		case codeUnknownChain:
			if err := g.provider.AddChain(ctx, target); err != nil {
				if rpcErrorCode(err) == codeUserRejected {
					return domain.WrapError(domain.KindNetworkSwitchRejected, "user declined to add the network", err)
				}
				return Classify(err, "add chain")
			}
			if err := g.provider.SwitchChain(ctx, target.ChainID); err != nil {
				return domain.WrapError(domain.KindNetworkSwitchRejected, "network switch failed after registration", err)
			}
		case codeUserRejected:
			return domain.WrapError(domain.KindNetworkSwitchRejected, "user declined the network switch", err)
		default:
			return Classify(err, "switch chain")
		}
	}

	// Verify the wallet landed on the requested chain.
	current, err = g.provider.ChainID(ctx)
	if err != nil {
		return Classify(err, "get chain id")
	}
	if current.Cmp(target.ChainID) != 0 {
		return domain.NewError(domain.KindNetworkMismatch, "wallet is on the wrong network")
	}
	return nil
}

// NativeBalance returns the native-currency balance in wei. Read-only;
// transient RPC failures are retried with backoff before surfacing.
func (g *Gateway) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance *big.Int
	err := g.readRetry(ctx, "native balance", func() error {
		var err error
		balance, err = g.provider.BalanceAt(ctx, common.HexToAddress(address))
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// BlockHeight returns the current head block number.
func (g *Gateway) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := g.readRetry(ctx, "block height", func() error {
		var err error
		height, err = g.provider.BlockNumber(ctx)
		return err
	})
	return height, err
}

// Call executes a read-only contract call with the read retry policy.
func (g *Gateway) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := g.readRetry(ctx, "contract call", func() error {
		var err error
		out, err = g.provider.CallContract(ctx, msg)
		return err
	})
	return out, err
}

// Submit hands a transaction to the wallet for signing and broadcast and
// returns the transaction hash as soon as the wallet accepts it. Never
// retried: a failed submission surfaces immediately so the caller can
// re-initiate without risking duplicate broadcast.
func (g *Gateway) Submit(ctx context.Context, tx TxRequest) (string, error) {
	if tx.GasPrice == nil {
		gasPrice, err := g.provider.SuggestGasPrice(ctx)
		if err == nil {
			tx.GasPrice = gasPrice
		}
	}
	// Cap gas price
	if tx.GasPrice != nil && g.opts.MaxGasPrice != nil && tx.GasPrice.Cmp(g.opts.MaxGasPrice) > 0 {
		tx.GasPrice = g.opts.MaxGasPrice
	}

	if tx.Gas == 0 {
		msg := ethereum.CallMsg{From: tx.From, To: tx.To, Value: tx.Value, Data: tx.Data}
		if gas, err := g.provider.EstimateGas(ctx, msg); err == nil {
			tx.Gas = gas + gas/5 // 20% headroom
		} else {
			tx.Gas = g.opts.GasLimitCall
		}
	}

	hash, err := g.provider.SendTransaction(ctx, tx)
	if err != nil {
		if rpcErrorCode(err) == codeUserRejected {
			return "", domain.WrapError(domain.KindUserRejected, "user rejected the transaction", err)
		}
		return "", Classify(err, "send transaction")
	}

	g.logger.Info("Transaction broadcast",
		zap.String("tx_hash", hash.Hex()),
		zap.String("from", tx.From.Hex()))
	return hash.Hex(), nil
}

// AwaitConfirmation polls for the transaction receipt until it reaches the
// requested depth or fails. Cancelling ctx abandons only the client-side
// wait; the broadcast transaction proceeds on the ledger regardless.
func (g *Gateway) AwaitConfirmation(ctx context.Context, txHash string, minConfirmations int) (*types.Receipt, error) {
	if minConfirmations < 1 {
		minConfirmations = 1
	}
	hash := common.HexToHash(txHash)

	ticker := time.NewTicker(g.opts.ReceiptPoll)
	defer ticker.Stop()
	deadline := time.After(g.opts.ConfirmTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil, Classify(ctx.Err(), "confirmation wait")

		case <-deadline:
			return nil, domain.NewError(domain.KindTimeout, "confirmation not reached within bound")

		case <-ticker.C:
			receipt, err := g.provider.TransactionReceipt(ctx, hash)
			if err != nil {
				if errors.Is(err, ethereum.NotFound) {
					continue
				}
				g.logger.Warn("Receipt poll failed",
					zap.String("tx_hash", txHash),
					zap.Error(err))
				continue
			}
			if receipt == nil || receipt.BlockNumber == nil {
				continue
			}

			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, domain.NewError(domain.KindTransactionReverted, "transaction reverted on-chain")
			}

			head, err := g.provider.BlockNumber(ctx)
			if err != nil {
				continue
			}
			confirmations := int(head-receipt.BlockNumber.Uint64()) + 1
			if confirmations >= minConfirmations {
				g.logger.Info("Transaction confirmed",
					zap.String("tx_hash", txHash),
					zap.Int("confirmations", confirmations))
				return receipt, nil
			}
		}
	}
}

// readRetry retries fn on transient errors a bounded number of times with
// linear backoff. Applies to reads only.
func (g *Gateway) readRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= g.opts.ReadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Classify(ctx.Err(), op)
			case <-time.After(g.opts.ReadBackoff * time.Duration(attempt)):
			}
			g.logger.Debug("Retrying read",
				zap.String("op", op),
				zap.Int("attempt", attempt))
		}
		err = fn()
		if err == nil {
			return nil
		}
		classified := Classify(err, op)
		if !domain.Retryable(classified) {
			return classified
		}
	}
	return Classify(err, op)
}

// Classify normalizes a provider error into the mirror's taxonomy. Raw
// provider shapes never cross the gateway boundary.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}

	// Context errors are terminal for the caller, never transient.
	if errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.KindCancelled, op+" cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.KindTimeout, op+" deadline exceeded", err)
	}

	switch rpcErrorCode(err) {
	case codeUserRejected:
		return domain.WrapError(domain.KindUserRejected, "user rejected "+op, err)
	case codeUnauthorized:
		return domain.WrapError(domain.KindUserRejected, "wallet not authorized for "+op, err)
	case codeDisconnected, codeChainDisconnected:
		return domain.WrapError(domain.KindProviderUnavailable, "wallet provider disconnected", err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert") {
		reason := RevertReason(err)
		if reason == "" {
			reason = "transaction reverted"
		}
		return domain.WrapError(domain.KindTransactionReverted, reason, err)
	}
	if strings.Contains(msg, "out of gas") || strings.Contains(msg, "intrinsic gas") {
		return domain.WrapError(domain.KindTransactionReverted, "out of gas", err)
	}

	// Anything else from the transport is treated as transient: connection
	// drops, timeouts, rate limits.
	return domain.WrapError(domain.KindTransientRpc, op+" failed", err)
}

// RevertReason extracts a decoded revert string from an rpc.DataError, if
// the node attached one.
func RevertReason(err error) string {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return ""
	}
	data, ok := de.ErrorData().(string)
	if !ok || !strings.HasPrefix(data, "0x") {
		return ""
	}
	reason, unpackErr := abi.UnpackRevert(common.FromHex(data))
	if unpackErr != nil {
		return ""
	}
	return reason
}

func rpcErrorCode(err error) int {
	var re rpc.Error
	if errors.As(err, &re) {
		return re.ErrorCode()
	}
	return 0
}
