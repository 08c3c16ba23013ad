// Package ledgertest provides an in-memory scripted ledger implementing
// gateway.Provider for tests: a fake EVM holding accounts, FLT state,
// tickets, concerts, and resale orders, executing contract calls against
// the real ABIs.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/gateway"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract addresses the fake ledger answers for.
const (
	NFTAddress      = "0x0987654321098765432109876543210987654321"
	FLTAddress      = "0x1234567890123456789012345678901234567890"
	RegistryAddress = "0x3333333333333333333333333333333333333333"
)

// FastOptions returns gateway options tuned for tests.
func FastOptions() gateway.Options {
	return gateway.Options{
		ReadRetries:    1,
		ReadBackoff:    time.Millisecond,
		ReceiptPoll:    time.Millisecond,
		ConfirmTimeout: 2 * time.Second,
	}
}

// rpcErr mimics a provider error carrying an EIP-1193 code.
type rpcErr struct {
	code int
	msg  string
}

func (e *rpcErr) Error() string  { return e.msg }
func (e *rpcErr) ErrorCode() int { return e.code }

// RPCError builds a coded provider error for scripting failures.
func RPCError(code int, msg string) error { return &rpcErr{code: code, msg: msg} }

type Ticket struct {
	ConcertID    uint64
	Owner        common.Address
	SeatSection  string
	SeatNumber   uint32
	Price        *big.Int
	Used         bool
	Transfers    int64
	PurchaseTime int64
}

type Concert struct {
	Name     string
	Artist   string
	Venue    string
	Date     int64
	Total    int64
	Sold     int64
	Price    *big.Int
	MaxAsk   *big.Int
	Active   bool
	MinLevel uint8
}

type Order struct {
	TicketID uint64
	Seller   common.Address
	Price    *big.Int
	ListTime int64
	Deadline int64
	Active   bool
}

// Provider is the scripted ledger.
type Provider struct {
	mu sync.Mutex

	nftABI abi.ABI
	fltABI abi.ABI
	regABI abi.ABI

	AccountList    []common.Address
	Chain          *big.Int
	RejectAccounts bool

	ETH       map[common.Address]*big.Int
	FLT       map[common.Address]*big.Int
	Staked    map[common.Address]*big.Int
	Rewards   map[common.Address]*big.Int
	Allowance map[[2]common.Address]*big.Int
	Levels    map[common.Address]uint8

	Tickets  map[uint64]*Ticket
	Concerts map[uint64]*Concert
	Orders   map[uint64]*Order

	// Fault injection: reads in Disabled revert, writes in RevertWrite fail
	// at submission with the given reason. HoldSend, when set, blocks every
	// SendTransaction until the channel closes; SendEntered signals each
	// arrival at the hold point.
	Disabled    map[string]bool
	RevertWrite map[string]string
	HoldSend    chan struct{}
	SendEntered chan struct{}

	Calls     map[string]int
	SendCount int

	head      uint64
	nextToken uint64
	nextOrder uint64
	txCounter uint64
	receipts  map[common.Hash]*types.Receipt
}

func New() *Provider {
	mustParse := func(src string) abi.ABI {
		parsed, err := abi.JSON(strings.NewReader(src))
		if err != nil {
			panic(err)
		}
		return parsed
	}
	return &Provider{
		nftABI:      mustParse(contracts.TicketNFTABI),
		fltABI:      mustParse(contracts.FLTTokenABI),
		regABI:      mustParse(contracts.VerificationRegistryABI),
		Chain:       big.NewInt(11155111),
		ETH:         make(map[common.Address]*big.Int),
		FLT:         make(map[common.Address]*big.Int),
		Staked:      make(map[common.Address]*big.Int),
		Rewards:     make(map[common.Address]*big.Int),
		Allowance:   make(map[[2]common.Address]*big.Int),
		Levels:      make(map[common.Address]uint8),
		Tickets:     make(map[uint64]*Ticket),
		Concerts:    make(map[uint64]*Concert),
		Orders:      make(map[uint64]*Order),
		Disabled:    make(map[string]bool),
		RevertWrite: make(map[string]string),
		Calls:       make(map[string]int),
		receipts:    make(map[common.Hash]*types.Receipt),
		head:        1,
	}
}

// ============================================================================
// Scripting helpers
// ============================================================================

// AddAccount registers an account with starting ETH and FLT balances.
func (p *Provider) AddAccount(addr string, eth, flt *big.Int) common.Address {
	a := common.HexToAddress(addr)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AccountList = append(p.AccountList, a)
	p.ETH[a] = new(big.Int).Set(eth)
	p.FLT[a] = new(big.Int).Set(flt)
	p.Staked[a] = big.NewInt(0)
	p.Rewards[a] = big.NewInt(0)
	return a
}

// AddConcert registers a concert under the given id.
func (p *Provider) AddConcert(id uint64, c Concert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Concerts[id] = &c
}

// MintTicket creates a ticket owned by owner and returns its id.
func (p *Provider) MintTicket(owner common.Address, t Ticket) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextToken++
	t.Owner = owner
	p.Tickets[p.nextToken] = &t
	return p.nextToken
}

// TicketOwner reports the current owner of a ticket.
func (p *Provider) TicketOwner(id uint64) common.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.Tickets[id]; ok {
		return t.Owner
	}
	return common.Address{}
}

// ActiveOrders counts active resale orders.
func (p *Provider) ActiveOrders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, o := range p.Orders {
		if o.Active {
			n++
		}
	}
	return n
}

// ============================================================================
// gateway.Provider
// ============================================================================

func (p *Provider) RequestAccounts(context.Context) ([]common.Address, error) {
	if p.RejectAccounts {
		return nil, &rpcErr{code: 4001, msg: "user rejected the request"}
	}
	return p.AccountList, nil
}

func (p *Provider) Accounts(context.Context) ([]common.Address, error) {
	return p.AccountList, nil
}

func (p *Provider) ChainID(context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.Chain), nil
}

func (p *Provider) SwitchChain(_ context.Context, chainID *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Chain = new(big.Int).Set(chainID)
	return nil
}

func (p *Provider) AddChain(context.Context, gateway.ChainDefinition) error {
	return nil
}

func (p *Provider) BalanceAt(_ context.Context, addr common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.ETH[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (p *Provider) BlockNumber(context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.head, nil
}

func (p *Provider) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (p *Provider) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, nil
}

func (p *Provider) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (p *Provider) Close() {}

func (p *Provider) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("malformed call")
	}
	kind, contractABI, ok := p.abiFor(*msg.To)
	if !ok {
		return nil, fmt.Errorf("unknown contract %s", msg.To.Hex())
	}
	method, err := contractABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls[method.Name]++
	if p.Disabled[method.Name] {
		return nil, fmt.Errorf("execution reverted: %s disabled", method.Name)
	}
	return p.read(kind, method, args)
}

func (p *Provider) SendTransaction(_ context.Context, tx gateway.TxRequest) (common.Hash, error) {
	if p.HoldSend != nil {
		if p.SendEntered != nil {
			p.SendEntered <- struct{}{}
		}
		<-p.HoldSend
	}
	if tx.To == nil || len(tx.Data) < 4 {
		return common.Hash{}, fmt.Errorf("malformed transaction")
	}
	_, contractABI, ok := p.abiFor(*tx.To)
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown contract %s", tx.To.Hex())
	}
	method, err := contractABI.MethodById(tx.Data[:4])
	if err != nil {
		return common.Hash{}, err
	}
	args, err := method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		return common.Hash{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.SendCount++
	p.Calls[method.Name]++
	if reason, ok := p.RevertWrite[method.Name]; ok {
		return common.Hash{}, fmt.Errorf("execution reverted: %s", reason)
	}
	if err := p.write(method.Name, tx.From, args); err != nil {
		return common.Hash{}, err
	}

	p.txCounter++
	p.head++
	hash := common.BigToHash(new(big.Int).SetUint64(p.txCounter))
	p.receipts[hash] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(p.head),
		GasUsed:     50_000,
	}
	return hash, nil
}

// ============================================================================
// Contract execution
// ============================================================================

func (p *Provider) abiFor(addr common.Address) (string, abi.ABI, bool) {
	switch addr {
	case common.HexToAddress(NFTAddress):
		return "nft", p.nftABI, true
	case common.HexToAddress(FLTAddress):
		return "flt", p.fltABI, true
	case common.HexToAddress(RegistryAddress):
		return "reg", p.regABI, true
	}
	return "", abi.ABI{}, false
}

func (p *Provider) ownedIDs(owner common.Address) []uint64 {
	var ids []uint64
	for id, t := range p.Tickets {
		if t.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Provider) read(kind string, method *abi.Method, args []interface{}) ([]byte, error) {
	switch method.Name {
	case "balanceOf":
		owner := args[0].(common.Address)
		if kind == "flt" {
			return method.Outputs.Pack(p.bal(p.FLT, owner))
		}
		return method.Outputs.Pack(big.NewInt(int64(len(p.ownedIDs(owner)))))

	case "ownerOf":
		id := args[0].(*big.Int).Uint64()
		t, ok := p.Tickets[id]
		if !ok {
			return nil, fmt.Errorf("execution reverted: nonexistent token")
		}
		return method.Outputs.Pack(t.Owner)

	case "totalSupply":
		return method.Outputs.Pack(new(big.Int).SetUint64(p.nextToken))

	case "tokenOfOwnerByIndex":
		ids := p.ownedIDs(args[0].(common.Address))
		idx := int(args[1].(*big.Int).Int64())
		if idx < 0 || idx >= len(ids) {
			return nil, fmt.Errorf("execution reverted: index out of bounds")
		}
		return method.Outputs.Pack(new(big.Int).SetUint64(ids[idx]))

	case "getUserTickets":
		ids := p.ownedIDs(args[0].(common.Address))
		out := make([]*big.Int, len(ids))
		for i, id := range ids {
			out[i] = new(big.Int).SetUint64(id)
		}
		return method.Outputs.Pack(out)

	case "getTicket":
		id := args[0].(*big.Int).Uint64()
		t, ok := p.Tickets[id]
		if !ok {
			return nil, fmt.Errorf("execution reverted: nonexistent token")
		}
		c := p.Concerts[t.ConcertID]
		if c == nil {
			c = &Concert{Price: big.NewInt(0)}
		}
		return method.Outputs.Pack(
			new(big.Int).SetUint64(t.ConcertID), c.Name, c.Artist, c.Venue,
			big.NewInt(c.Date), t.SeatSection, t.SeatNumber,
			p.orZero(t.Price), t.Owner, t.Used,
			big.NewInt(t.Transfers), big.NewInt(t.PurchaseTime))

	case "getConcert":
		id := args[0].(*big.Int).Uint64()
		c, ok := p.Concerts[id]
		if !ok {
			return nil, fmt.Errorf("execution reverted: unknown concert")
		}
		return method.Outputs.Pack(
			c.Name, c.Artist, c.Venue, big.NewInt(c.Date),
			big.NewInt(c.Total), big.NewInt(c.Sold),
			p.orZero(c.Price), p.orZero(c.MaxAsk), c.Active, c.MinLevel)

	case "getActiveResaleOrders":
		concertID := args[0].(*big.Int).Uint64()
		var ids []uint64
		for id, o := range p.Orders {
			t := p.Tickets[o.TicketID]
			if o.Active && t != nil && t.ConcertID == concertID {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := make([]*big.Int, len(ids))
		for i, id := range ids {
			out[i] = new(big.Int).SetUint64(id)
		}
		return method.Outputs.Pack(out)

	case "getResaleOrder":
		id := args[0].(*big.Int).Uint64()
		o, ok := p.Orders[id]
		if !ok {
			return nil, fmt.Errorf("execution reverted: unknown order")
		}
		return method.Outputs.Pack(
			new(big.Int).SetUint64(o.TicketID), o.Seller, p.orZero(o.Price),
			big.NewInt(o.ListTime), big.NewInt(o.Deadline), o.Active)

	case "allowance":
		key := [2]common.Address{args[0].(common.Address), args[1].(common.Address)}
		if a, ok := p.Allowance[key]; ok {
			return method.Outputs.Pack(new(big.Int).Set(a))
		}
		return method.Outputs.Pack(big.NewInt(0))

	case "stakedBalance":
		return method.Outputs.Pack(p.bal(p.Staked, args[0].(common.Address)))

	case "pendingRewards":
		return method.Outputs.Pack(p.bal(p.Rewards, args[0].(common.Address)))

	case "verificationLevel":
		return method.Outputs.Pack(p.Levels[args[0].(common.Address)])
	}
	return nil, fmt.Errorf("unhandled read %s", method.Name)
}

func (p *Provider) write(name string, from common.Address, args []interface{}) error {
	switch name {
	case "approve":
		key := [2]common.Address{from, args[0].(common.Address)}
		p.Allowance[key] = new(big.Int).Set(args[1].(*big.Int))
		return nil

	case "transfer":
		return p.moveFLT(from, args[0].(common.Address), args[1].(*big.Int))

	case "stake":
		amount := args[0].(*big.Int)
		if p.bal(p.FLT, from).Cmp(amount) < 0 {
			return fmt.Errorf("execution reverted: insufficient balance")
		}
		p.FLT[from] = new(big.Int).Sub(p.FLT[from], amount)
		p.Staked[from] = new(big.Int).Add(p.bal(p.Staked, from), amount)
		return nil

	case "unstake":
		amount := args[0].(*big.Int)
		if p.bal(p.Staked, from).Cmp(amount) < 0 {
			return fmt.Errorf("execution reverted: insufficient staked balance")
		}
		p.Staked[from] = new(big.Int).Sub(p.Staked[from], amount)
		p.FLT[from] = new(big.Int).Add(p.bal(p.FLT, from), amount)
		return nil

	case "claimRewards":
		p.FLT[from] = new(big.Int).Add(p.bal(p.FLT, from), p.bal(p.Rewards, from))
		p.Rewards[from] = big.NewInt(0)
		return nil

	case "purchaseTicket":
		concertID := args[0].(*big.Int).Uint64()
		c, ok := p.Concerts[concertID]
		if !ok || !c.Active || c.Sold >= c.Total {
			return fmt.Errorf("execution reverted: concert unavailable")
		}
		if p.bal(p.FLT, from).Cmp(c.Price) < 0 {
			return fmt.Errorf("execution reverted: insufficient balance")
		}
		p.FLT[from] = new(big.Int).Sub(p.FLT[from], c.Price)
		c.Sold++
		p.nextToken++
		p.Tickets[p.nextToken] = &Ticket{
			ConcertID:    concertID,
			Owner:        from,
			SeatSection:  args[1].(string),
			SeatNumber:   args[2].(uint32),
			Price:        new(big.Int).Set(c.Price),
			PurchaseTime: time.Now().Unix(),
		}
		return nil

	case "listForResale":
		ticketID := args[0].(*big.Int).Uint64()
		t, ok := p.Tickets[ticketID]
		if !ok || t.Owner != from || t.Used {
			return fmt.Errorf("execution reverted: not resellable")
		}
		p.nextOrder++
		p.Orders[p.nextOrder] = &Order{
			TicketID: ticketID,
			Seller:   from,
			Price:    new(big.Int).Set(args[1].(*big.Int)),
			ListTime: time.Now().Unix(),
			Deadline: args[2].(*big.Int).Int64(),
			Active:   true,
		}
		return nil

	case "cancelResale":
		o, ok := p.Orders[args[0].(*big.Int).Uint64()]
		if !ok || !o.Active || o.Seller != from {
			return fmt.Errorf("execution reverted: not the seller")
		}
		o.Active = false
		return nil

	case "buyResale":
		o, ok := p.Orders[args[0].(*big.Int).Uint64()]
		if !ok || !o.Active {
			return fmt.Errorf("execution reverted: order inactive")
		}
		if err := p.moveFLT(from, o.Seller, o.Price); err != nil {
			return err
		}
		t := p.Tickets[o.TicketID]
		t.Owner = from
		t.Transfers++
		o.Active = false
		return nil

	case "useTicket":
		t, ok := p.Tickets[args[0].(*big.Int).Uint64()]
		if !ok || t.Owner != from || t.Used {
			return fmt.Errorf("execution reverted: cannot redeem")
		}
		t.Used = true
		return nil

	case "transferTicket":
		to := args[0].(common.Address)
		t, ok := p.Tickets[args[1].(*big.Int).Uint64()]
		if !ok || t.Owner != from || t.Used {
			return fmt.Errorf("execution reverted: cannot transfer")
		}
		t.Owner = to
		t.Transfers++
		return nil
	}
	return fmt.Errorf("unhandled write %s", name)
}

func (p *Provider) moveFLT(from, to common.Address, amount *big.Int) error {
	if p.bal(p.FLT, from).Cmp(amount) < 0 {
		return fmt.Errorf("execution reverted: insufficient balance")
	}
	p.FLT[from] = new(big.Int).Sub(p.FLT[from], amount)
	p.FLT[to] = new(big.Int).Add(p.bal(p.FLT, to), amount)
	return nil
}

func (p *Provider) bal(m map[common.Address]*big.Int, addr common.Address) *big.Int {
	if b, ok := m[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

func (p *Provider) orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
