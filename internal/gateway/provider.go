// internal/gateway/provider.go
package gateway

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// TxRequest is an unsigned transaction handed to the external wallet for
// signing and broadcast. The mirror never holds private keys.
type TxRequest struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
}

// Currency describes a chain's native currency for registration.
type Currency struct {
	Name     string
	Symbol   string
	Decimals int
}

// ChainDefinition is the payload for registering a network with the wallet.
type ChainDefinition struct {
	ChainID        *big.Int
	Name           string
	RPCURLs        []string
	ExplorerURLs   []string
	NativeCurrency Currency
}

// Provider is the duck-typed external wallet/RPC surface, wrapped behind an
// interface so everything above the gateway depends only on this shape.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	AddChain(ctx context.Context, def ChainDefinition) error

	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	Close()
}

// walletProvider implements Provider over a JSON-RPC endpoint that exposes
// both the standard eth_* namespace and the wallet_* account methods.
type walletProvider struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

// DialProvider connects to the wallet RPC endpoint.
func DialProvider(ctx context.Context, rawurl string) (Provider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to provider: %w", err)
	}
	return &walletProvider{
		rpc: client,
		eth: ethclient.NewClient(client),
	}, nil
}

func (p *walletProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := p.rpc.CallContext(ctx, &raw, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return toAddresses(raw), nil
}

func (p *walletProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := p.rpc.CallContext(ctx, &raw, "eth_accounts"); err != nil {
		return nil, err
	}
	return toAddresses(raw), nil
}

func (p *walletProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.eth.ChainID(ctx)
}

func (p *walletProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	param := map[string]string{"chainId": hexutil.EncodeBig(chainID)}
	return p.rpc.CallContext(ctx, nil, "wallet_switchEthereumChain", param)
}

func (p *walletProvider) AddChain(ctx context.Context, def ChainDefinition) error {
	param := map[string]interface{}{
		"chainId":           hexutil.EncodeBig(def.ChainID),
		"chainName":         def.Name,
		"rpcUrls":           def.RPCURLs,
		"blockExplorerUrls": def.ExplorerURLs,
		"nativeCurrency": map[string]interface{}{
			"name":     def.NativeCurrency.Name,
			"symbol":   def.NativeCurrency.Symbol,
			"decimals": def.NativeCurrency.Decimals,
		},
	}
	return p.rpc.CallContext(ctx, nil, "wallet_addEthereumChain", param)
}

func (p *walletProvider) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return p.eth.BalanceAt(ctx, addr, nil)
}

func (p *walletProvider) BlockNumber(ctx context.Context) (uint64, error) {
	return p.eth.BlockNumber(ctx)
}

func (p *walletProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return p.eth.CallContract(ctx, msg, nil)
}

func (p *walletProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return p.eth.SuggestGasPrice(ctx)
}

func (p *walletProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return p.eth.EstimateGas(ctx, msg)
}

func (p *walletProvider) SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error) {
	arg := map[string]interface{}{
		"from": tx.From.Hex(),
	}
	if tx.To != nil {
		arg["to"] = tx.To.Hex()
	}
	if tx.Value != nil {
		arg["value"] = hexutil.EncodeBig(tx.Value)
	}
	if len(tx.Data) > 0 {
		arg["data"] = hexutil.Encode(tx.Data)
	}
	if tx.Gas > 0 {
		arg["gas"] = hexutil.EncodeUint64(tx.Gas)
	}
	if tx.GasPrice != nil {
		arg["gasPrice"] = hexutil.EncodeBig(tx.GasPrice)
	}

	var hash common.Hash
	if err := p.rpc.CallContext(ctx, &hash, "eth_sendTransaction", arg); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (p *walletProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return p.eth.TransactionReceipt(ctx, hash)
}

func (p *walletProvider) Close() {
	p.rpc.Close()
}

func toAddresses(raw []string) []common.Address {
	addrs := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		addrs = append(addrs, common.HexToAddress(s))
	}
	return addrs
}
