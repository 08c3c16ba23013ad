// internal/orchestrator/orchestrator_test.go
package orchestrator_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"
	"ticket-mirror/internal/ledgertest"
	"ticket-mirror/internal/orchestrator"
	"ticket-mirror/internal/state"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	buyerAddr  = "0x1111111111111111111111111111111111111111"
	sellerAddr = "0x2222222222222222222222222222222222222222"
)

func flt(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type harness struct {
	provider  *ledgertest.Provider
	wallet    *state.Wallet
	token     *state.Token
	inventory *state.Inventory
	orch      *orchestrator.Orchestrator
}

// newHarness wires the full mirror stack over the scripted ledger and
// connects the first registered account.
func newHarness(t *testing.T, p *ledgertest.Provider) *harness {
	t.Helper()
	logger := zap.NewNop()
	gw := gateway.New(p, logger, ledgertest.FastOptions())

	nft, err := contracts.NewTicketNFT(gw, ledgertest.NFTAddress, 100, 1, logger)
	if err != nil {
		t.Fatalf("NewTicketNFT: %v", err)
	}
	fltContract, err := contracts.NewFLT(gw, ledgertest.FLTAddress, 1, logger)
	if err != nil {
		t.Fatalf("NewFLT: %v", err)
	}
	registry, err := contracts.NewVerificationRegistry(gw, ledgertest.RegistryAddress, logger)
	if err != nil {
		t.Fatalf("NewVerificationRegistry: %v", err)
	}

	chain := gateway.ChainDefinition{ChainID: big.NewInt(11155111)}
	wallet := state.NewWallet(gw, nft, fltContract, registry, state.NewMemorySessionStore(),
		chain, nil, nil, logger)
	token := state.NewToken(fltContract, logger)
	inventory := state.NewInventory(nft, logger)
	orch := orchestrator.New(nft, fltContract, wallet, inventory, logger)
	token.SetRunner(orch)

	ctx := context.Background()
	identity, err := wallet.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	token.Bind(identity.Address)
	inventory.Bind(identity.Address)
	if err := inventory.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	return &harness{provider: p, wallet: wallet, token: token, inventory: inventory, orch: orch}
}

func seedConcert(p *ledgertest.Provider) {
	p.AddConcert(1, ledgertest.Concert{
		Name: "BTS World Tour", Artist: "BTS", Venue: "Olympic Stadium",
		Date: time.Now().Add(30 * 24 * time.Hour).Unix(),
		Total: 100, Sold: 0, Price: flt(50), MaxAsk: flt(60),
		Active: true, MinLevel: 0,
	})
}

func TestPurchaseEndToEnd(t *testing.T) {
	p := ledgertest.New()
	p.AddAccount(buyerAddr, flt(1), flt(1000))
	seedConcert(p)
	h := newHarness(t, p)

	res := h.orch.Run(context.Background(), &domain.PendingIntent{
		Kind:        domain.IntentPurchase,
		ConcertID:   1,
		SeatSection: "VIP",
		SeatNumber:  1,
	})
	if !res.Success {
		t.Fatalf("purchase: %v", res.Err)
	}

	// One approval, since the standing allowance was zero.
	if p.Calls["approve"] != 1 {
		t.Fatalf("approve calls = %d, want 1", p.Calls["approve"])
	}
	// Exactly one price deduction survives reconciliation.
	if got := h.wallet.Identity().FLTBalance; got.Cmp(flt(950)) != 0 {
		t.Fatalf("balance = %s, want 950", got)
	}
	if h.inventory.Count() != 1 {
		t.Fatalf("inventory = %d, want 1", h.inventory.Count())
	}
	if purchases := h.wallet.Purchases(); len(purchases) != 1 {
		t.Fatalf("purchases = %d, want 1", len(purchases))
	}
}

func TestPurchaseSkipsApprovalWhenAllowanceSuffices(t *testing.T) {
	p := ledgertest.New()
	buyer := p.AddAccount(buyerAddr, flt(1), flt(1000))
	seedConcert(p)
	p.Allowance[[2]common.Address{buyer, common.HexToAddress(ledgertest.NFTAddress)}] = flt(500)
	h := newHarness(t, p)

	res := h.orch.Run(context.Background(), &domain.PendingIntent{
		Kind:      domain.IntentPurchase,
		ConcertID: 1,
	})
	if !res.Success {
		t.Fatalf("purchase: %v", res.Err)
	}
	if p.Calls["approve"] != 0 {
		t.Fatalf("approve calls = %d, want 0 with sufficient allowance", p.Calls["approve"])
	}
}

func TestPurchaseVerificationTooLow(t *testing.T) {
	p := ledgertest.New()
	p.AddAccount(buyerAddr, flt(1), flt(1000))
	p.AddConcert(1, ledgertest.Concert{
		Name: "Members Only", Total: 10, Price: flt(50), MaxAsk: flt(60),
		Active: true, MinLevel: 2,
	})
	h := newHarness(t, p)

	res := h.orch.Run(context.Background(), &domain.PendingIntent{
		Kind:      domain.IntentPurchase,
		ConcertID: 1,
	})
	if !domain.IsKind(res.Err, domain.KindVerificationTooLow) {
		t.Fatalf("kind = %v, want verification_too_low", domain.KindOf(res.Err))
	}
	if p.SendCount != 0 {
		t.Fatal("failed eligibility must not reach the network")
	}
}

func TestListResaleAboveCapFailsWithoutNetwork(t *testing.T) {
	p := ledgertest.New()
	seller := p.AddAccount(sellerAddr, flt(1), flt(100))
	seedConcert(p)
	ticketID := p.MintTicket(seller, ledgertest.Ticket{ConcertID: 1, Price: flt(50)})
	h := newHarness(t, p)

	// Catalog already cached; the cap check must not touch the ledger.
	h.orch.PrimeConcert(domain.Concert{
		ID: 1, MaxResalePrice: flt(60), IsActive: true, TotalTickets: 100,
	})
	readsBefore := p.Calls["getConcert"]

	res := h.orch.Run(context.Background(), &domain.PendingIntent{
		Kind:     domain.IntentListResale,
		TicketID: ticketID,
		Amount:   flt(61),
		Deadline: time.Now().Add(time.Hour),
	})
	if !domain.IsKind(res.Err, domain.KindPriceAboveCap) {
		t.Fatalf("kind = %v, want price_above_cap", domain.KindOf(res.Err))
	}
	if p.SendCount != 0 {
		t.Fatal("cap violation must not submit a transaction")
	}
	if p.Calls["getConcert"] != readsBefore {
		t.Fatal("cap violation must not re-read the concert")
	}
}

func TestListThenCancelRestoresResellable(t *testing.T) {
	p := ledgertest.New()
	seller := p.AddAccount(sellerAddr, flt(1), flt(100))
	seedConcert(p)
	ticketID := p.MintTicket(seller, ledgertest.Ticket{ConcertID: 1, Price: flt(50)})
	h := newHarness(t, p)
	ctx := context.Background()

	res := h.orch.Run(ctx, &domain.PendingIntent{
		Kind:     domain.IntentListResale,
		TicketID: ticketID,
		Amount:   flt(55),
		Deadline: time.Now().Add(time.Hour),
	})
	if !res.Success {
		t.Fatalf("list: %v", res.Err)
	}
	if p.ActiveOrders() != 1 {
		t.Fatalf("active orders = %d, want 1", p.ActiveOrders())
	}

	res = h.orch.Run(ctx, &domain.PendingIntent{
		Kind:    domain.IntentCancelResale,
		OrderID: 1,
	})
	if !res.Success {
		t.Fatalf("cancel: %v", res.Err)
	}
	if p.ActiveOrders() != 0 {
		t.Fatalf("active orders = %d, want 0", p.ActiveOrders())
	}

	ticket, ok := h.inventory.Get(ticketID)
	if !ok || !ticket.Resellable() {
		t.Fatal("cancelled listing must leave the ticket resellable")
	}
}

func TestConcurrentIntentOnSameTicketIsBusy(t *testing.T) {
	p := ledgertest.New()
	seller := p.AddAccount(sellerAddr, flt(1), flt(100))
	seedConcert(p)
	ticketID := p.MintTicket(seller, ledgertest.Ticket{ConcertID: 1, Price: flt(50)})

	p.HoldSend = make(chan struct{})
	p.SendEntered = make(chan struct{}, 1)
	h := newHarness(t, p)
	ctx := context.Background()

	firstDone := make(chan domain.CallResult, 1)
	go func() {
		firstDone <- h.orch.Run(ctx, &domain.PendingIntent{
			Kind:     domain.IntentTransfer,
			TicketID: ticketID,
			To:       buyerAddr,
		})
	}()
	<-p.SendEntered // first transfer is now in flight

	second := h.orch.Run(ctx, &domain.PendingIntent{
		Kind:     domain.IntentTransfer,
		TicketID: ticketID,
		To:       buyerAddr,
	})
	if !domain.IsKind(second.Err, domain.KindResourceBusy) {
		t.Fatalf("kind = %v, want resource_busy", domain.KindOf(second.Err))
	}

	close(p.HoldSend)
	first := <-firstDone
	if !first.Success {
		t.Fatalf("first transfer: %v", first.Err)
	}
	if _, ok := h.inventory.Get(ticketID); ok {
		t.Fatal("transferred ticket must leave the inventory")
	}
}

func TestUseTicketIsIdempotent(t *testing.T) {
	p := ledgertest.New()
	owner := p.AddAccount(buyerAddr, flt(1), flt(100))
	seedConcert(p)
	ticketID := p.MintTicket(owner, ledgertest.Ticket{ConcertID: 1, Price: flt(50)})
	h := newHarness(t, p)
	ctx := context.Background()

	res := h.orch.Run(ctx, &domain.PendingIntent{Kind: domain.IntentUseTicket, TicketID: ticketID})
	if !res.Success {
		t.Fatalf("use: %v", res.Err)
	}
	ticket, _ := h.inventory.Get(ticketID)
	if !ticket.IsUsed {
		t.Fatal("ticket must be marked used")
	}

	// Redeeming again is a local no-op.
	res = h.orch.Run(ctx, &domain.PendingIntent{Kind: domain.IntentUseTicket, TicketID: ticketID})
	if !res.Success {
		t.Fatalf("second use: %v", res.Err)
	}
	if p.Calls["useTicket"] != 1 {
		t.Fatalf("useTicket calls = %d, want 1", p.Calls["useTicket"])
	}
}

func TestStakeThroughOrchestratorRollsBack(t *testing.T) {
	p := ledgertest.New()
	p.AddAccount(buyerAddr, flt(1), flt(100))
	p.RevertWrite["stake"] = "staking paused"
	h := newHarness(t, p)
	ctx := context.Background()

	if err := h.token.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	res := h.token.Stake(ctx, flt(40))
	if res.Success {
		t.Fatal("expected stake to fail")
	}
	if !domain.IsKind(res.Err, domain.KindTransactionReverted) {
		t.Fatalf("kind = %v, want transaction_reverted", domain.KindOf(res.Err))
	}
	balance, staked, _ := h.token.Balances()
	if balance.Cmp(flt(100)) != 0 || staked.Sign() != 0 {
		t.Fatalf("balance=%s staked=%s after rollback, want 100/0", balance, staked)
	}
}
