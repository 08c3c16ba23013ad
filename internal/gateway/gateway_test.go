// internal/gateway/gateway_test.go
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"ticket-mirror/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type codedErr struct {
	code int
	msg  string
}

func (e *codedErr) Error() string  { return e.msg }
func (e *codedErr) ErrorCode() int { return e.code }

// stubProvider lets each test script exactly the calls it cares about.
type stubProvider struct {
	requestAccounts func(ctx context.Context) ([]common.Address, error)
	chainID         func(ctx context.Context) (*big.Int, error)
	switchChain     func(ctx context.Context, chainID *big.Int) error
	addChain        func(ctx context.Context, def ChainDefinition) error
	balanceAt       func(ctx context.Context, addr common.Address) (*big.Int, error)
	blockNumber     func(ctx context.Context) (uint64, error)
	callContract    func(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	sendTransaction func(ctx context.Context, tx TxRequest) (common.Hash, error)
	receipt         func(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

func (s *stubProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return s.requestAccounts(ctx)
}
func (s *stubProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return s.requestAccounts(ctx)
}
func (s *stubProvider) ChainID(ctx context.Context) (*big.Int, error) { return s.chainID(ctx) }
func (s *stubProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	return s.switchChain(ctx, chainID)
}
func (s *stubProvider) AddChain(ctx context.Context, def ChainDefinition) error {
	return s.addChain(ctx, def)
}
func (s *stubProvider) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.balanceAt(ctx, addr)
}
func (s *stubProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return s.blockNumber(ctx)
}
func (s *stubProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return s.callContract(ctx, msg)
}
func (s *stubProvider) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (s *stubProvider) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21_000, nil
}
func (s *stubProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	return s.sendTransaction(ctx, tx)
}
func (s *stubProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return s.receipt(ctx, hash)
}
func (s *stubProvider) Close() {}

func testGateway(p Provider) *Gateway {
	return New(p, zap.NewNop(), Options{
		ReadRetries:    2,
		ReadBackoff:    time.Millisecond,
		ReceiptPoll:    time.Millisecond,
		ConfirmTimeout: 100 * time.Millisecond,
	})
}

func TestConnect(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	tests := []struct {
		name     string
		accounts []common.Address
		err      error
		wantKind domain.ErrorKind
		wantAddr string
	}{
		{name: "success", accounts: []common.Address{addr}, wantAddr: addr.Hex()},
		{name: "user rejected", err: &codedErr{code: 4001, msg: "rejected"}, wantKind: domain.KindUserRejected},
		{name: "no accounts", accounts: nil, wantKind: domain.KindNoAccounts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := testGateway(&stubProvider{
				requestAccounts: func(context.Context) ([]common.Address, error) {
					return tt.accounts, tt.err
				},
			})
			got, err := gw.Connect(context.Background())
			if tt.wantKind != "" {
				if !domain.IsKind(err, tt.wantKind) {
					t.Fatalf("kind = %v, want %v (err %v)", domain.KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			if got != tt.wantAddr {
				t.Fatalf("address = %s, want %s", got, tt.wantAddr)
			}
		})
	}
}

func TestConnectNilProvider(t *testing.T) {
	gw := testGateway(nil)
	_, err := gw.Connect(context.Background())
	if !domain.IsKind(err, domain.KindProviderUnavailable) {
		t.Fatalf("kind = %v, want provider_unavailable", domain.KindOf(err))
	}
}

func TestEnsureNetworkAddsUnknownChain(t *testing.T) {
	target := ChainDefinition{ChainID: big.NewInt(11155111)}
	current := big.NewInt(1)
	added := false

	gw := testGateway(&stubProvider{
		chainID: func(context.Context) (*big.Int, error) {
			return new(big.Int).Set(current), nil
		},
		switchChain: func(_ context.Context, id *big.Int) error {
			if !added {
				return &codedErr{code: 4902, msg: "unknown chain"}
			}
			current = id
			return nil
		},
		addChain: func(context.Context, ChainDefinition) error {
			added = true
			return nil
		},
	})

	if err := gw.EnsureNetwork(context.Background(), target); err != nil {
		t.Fatalf("EnsureNetwork: %v", err)
	}
	if !added {
		t.Fatal("expected the chain to be registered before switching")
	}
	if current.Cmp(target.ChainID) != 0 {
		t.Fatalf("active chain = %s, want %s", current, target.ChainID)
	}
}

func TestEnsureNetworkSwitchRejected(t *testing.T) {
	gw := testGateway(&stubProvider{
		chainID: func(context.Context) (*big.Int, error) { return big.NewInt(1), nil },
		switchChain: func(context.Context, *big.Int) error {
			return &codedErr{code: 4001, msg: "rejected"}
		},
	})
	err := gw.EnsureNetwork(context.Background(), ChainDefinition{ChainID: big.NewInt(11155111)})
	if !domain.IsKind(err, domain.KindNetworkSwitchRejected) {
		t.Fatalf("kind = %v, want network_switch_rejected", domain.KindOf(err))
	}
}

func TestNativeBalanceRetriesTransientErrors(t *testing.T) {
	attempts := 0
	gw := testGateway(&stubProvider{
		balanceAt: func(context.Context, common.Address) (*big.Int, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("connection reset")
			}
			return big.NewInt(42), nil
		},
	})

	got, err := gw.NativeBalance(context.Background(), "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("NativeBalance: %v", err)
	}
	if got.Int64() != 42 {
		t.Fatalf("balance = %s, want 42", got)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestCallDoesNotRetryReverts(t *testing.T) {
	attempts := 0
	gw := testGateway(&stubProvider{
		callContract: func(context.Context, ethereum.CallMsg) ([]byte, error) {
			attempts++
			return nil, errors.New("execution reverted: nope")
		},
	})

	_, err := gw.Call(context.Background(), ethereum.CallMsg{})
	if !domain.IsKind(err, domain.KindTransactionReverted) {
		t.Fatalf("kind = %v, want transaction_reverted", domain.KindOf(err))
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (reverts must not retry)", attempts)
	}
}

func TestSubmitUserRejected(t *testing.T) {
	gw := testGateway(&stubProvider{
		sendTransaction: func(context.Context, TxRequest) (common.Hash, error) {
			return common.Hash{}, &codedErr{code: 4001, msg: "rejected"}
		},
	})
	_, err := gw.Submit(context.Background(), TxRequest{})
	if !domain.IsKind(err, domain.KindUserRejected) {
		t.Fatalf("kind = %v, want user_rejected", domain.KindOf(err))
	}
}

func TestAwaitConfirmation(t *testing.T) {
	hash := common.HexToHash("0xabc")
	head := uint64(10)
	polls := 0

	gw := testGateway(&stubProvider{
		blockNumber: func(context.Context) (uint64, error) { return head, nil },
		receipt: func(context.Context, common.Hash) (*types.Receipt, error) {
			polls++
			if polls < 3 {
				return nil, ethereum.NotFound
			}
			return &types.Receipt{
				Status:      types.ReceiptStatusSuccessful,
				BlockNumber: big.NewInt(9),
			}, nil
		},
	})

	receipt, err := gw.AwaitConfirmation(context.Background(), hash.Hex(), 2)
	if err != nil {
		t.Fatalf("AwaitConfirmation: %v", err)
	}
	if receipt.BlockNumber.Int64() != 9 {
		t.Fatalf("block = %s, want 9", receipt.BlockNumber)
	}
}

func TestAwaitConfirmationRevertedReceipt(t *testing.T) {
	gw := testGateway(&stubProvider{
		blockNumber: func(context.Context) (uint64, error) { return 5, nil },
		receipt: func(context.Context, common.Hash) (*types.Receipt, error) {
			return &types.Receipt{
				Status:      types.ReceiptStatusFailed,
				BlockNumber: big.NewInt(5),
			}, nil
		},
	})
	_, err := gw.AwaitConfirmation(context.Background(), "0xdef", 1)
	if !domain.IsKind(err, domain.KindTransactionReverted) {
		t.Fatalf("kind = %v, want transaction_reverted", domain.KindOf(err))
	}
}

func TestAwaitConfirmationTimesOut(t *testing.T) {
	gw := testGateway(&stubProvider{
		receipt: func(context.Context, common.Hash) (*types.Receipt, error) {
			return nil, ethereum.NotFound
		},
	})
	_, err := gw.AwaitConfirmation(context.Background(), "0x123", 1)
	if !domain.IsKind(err, domain.KindTimeout) {
		t.Fatalf("kind = %v, want timeout", domain.KindOf(err))
	}
}

func TestAwaitConfirmationCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := New(&stubProvider{
		receipt: func(context.Context, common.Hash) (*types.Receipt, error) {
			return nil, ethereum.NotFound
		},
	}, zap.NewNop(), Options{ReceiptPoll: time.Millisecond, ConfirmTimeout: time.Minute})
	_, err := gw.AwaitConfirmation(ctx, "0x123", 1)
	if !domain.IsKind(err, domain.KindCancelled) {
		t.Fatalf("kind = %v, want cancelled", domain.KindOf(err))
	}
	if domain.Retryable(err) {
		t.Fatal("a cancelled wait must not classify as retryable")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"user rejected", &codedErr{code: 4001, msg: "no"}, domain.KindUserRejected},
		{"unauthorized", &codedErr{code: 4100, msg: "no"}, domain.KindUserRejected},
		{"disconnected", &codedErr{code: 4900, msg: "gone"}, domain.KindProviderUnavailable},
		{"revert", fmt.Errorf("execution reverted: sold out"), domain.KindTransactionReverted},
		{"out of gas", fmt.Errorf("out of gas"), domain.KindTransactionReverted},
		{"transport", fmt.Errorf("dial tcp: timeout"), domain.KindTransientRpc},
		{"context cancelled", context.Canceled, domain.KindCancelled},
		{"context deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), domain.KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.KindOf(Classify(tt.err, "op")); got != tt.want {
				t.Fatalf("kind = %v, want %v", got, tt.want)
			}
		})
	}
}
