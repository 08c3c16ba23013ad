// internal/state/wallet_test.go
package state

import (
	"context"
	"math/big"
	"testing"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"
	"ticket-mirror/internal/ledgertest"

	"go.uber.org/zap"
)

const otherHolder = "0x2222222222222222222222222222222222222222"

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func newWalletHarness(t *testing.T, p *ledgertest.Provider, ethNoise, fltNoise *big.Int) (*Wallet, SessionStore) {
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

	sessions := NewMemorySessionStore()
	chain := gateway.ChainDefinition{ChainID: big.NewInt(11155111)}
	return NewWallet(gw, nft, fltContract, registry, sessions, chain, ethNoise, fltNoise, logger), sessions
}

func TestWalletConnectPopulatesIdentity(t *testing.T) {
	p := ledgertest.New()
	a := p.AddAccount(holder, eth(2), fltUnits(500))
	p.Levels[a] = 2
	p.MintTicket(a, ledgertest.Ticket{ConcertID: 1, Price: fltUnits(50)})

	w, _ := newWalletHarness(t, p, nil, nil)
	identity, err := w.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if w.State() != domain.StateConnected {
		t.Fatalf("state = %v, want connected", w.State())
	}
	if identity.Address != a.Hex() {
		t.Fatalf("address = %s, want %s", identity.Address, a.Hex())
	}
	if identity.ETHBalance.Cmp(eth(2)) != 0 || identity.FLTBalance.Cmp(fltUnits(500)) != 0 {
		t.Fatalf("balances = %s/%s", identity.ETHBalance, identity.FLTBalance)
	}
	if identity.NFTCount != 1 || identity.Level != domain.LevelSilver {
		t.Fatalf("count=%d level=%v", identity.NFTCount, identity.Level)
	}
}

func TestWalletConnectWhileConnectingIsRejected(t *testing.T) {
	p := ledgertest.New()
	p.AddAccount(holder, eth(2), fltUnits(500))
	w, _ := newWalletHarness(t, p, nil, nil)

	w.mu.Lock()
	w.state = domain.StateConnecting
	w.mu.Unlock()

	_, err := w.Connect(context.Background())
	if !domain.IsKind(err, domain.KindResourceBusy) {
		t.Fatalf("kind = %v, want resource_busy", domain.KindOf(err))
	}
	if w.State() != domain.StateConnecting {
		t.Fatalf("state = %v, the in-flight handshake must keep its state", w.State())
	}

	// Once the first handshake resolves, connecting works normally.
	w.mu.Lock()
	w.state = domain.StateDisconnected
	w.mu.Unlock()
	if _, err := w.Connect(context.Background()); err != nil {
		t.Fatalf("Connect after resolution: %v", err)
	}
}

func TestWalletConnectRejected(t *testing.T) {
	p := ledgertest.New()
	p.RejectAccounts = true

	w, _ := newWalletHarness(t, p, nil, nil)
	_, err := w.Connect(context.Background())
	if !domain.IsKind(err, domain.KindUserRejected) {
		t.Fatalf("kind = %v, want user_rejected", domain.KindOf(err))
	}
	if w.State() != domain.StateDisconnected {
		t.Fatalf("state = %v, want disconnected", w.State())
	}
}

func TestWalletRefreshAppliesNoiseThreshold(t *testing.T) {
	p := ledgertest.New()
	a := p.AddAccount(holder, eth(10), fltUnits(100))

	// Ignore ETH deltas below 1 ETH.
	w, _ := newWalletHarness(t, p, eth(1), nil)
	if _, err := w.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// A dust-sized delta is ignored.
	p.ETH[a] = new(big.Int).Add(eth(10), big.NewInt(1000))
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := w.Identity().ETHBalance; got.Cmp(eth(10)) != 0 {
		t.Fatalf("balance = %s, want unchanged 10 ETH", got)
	}

	// A real delta lands.
	p.ETH[a] = eth(13)
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := w.Identity().ETHBalance; got.Cmp(eth(13)) != 0 {
		t.Fatalf("balance = %s, want 13 ETH", got)
	}
}

func TestWalletOptimisticDeductionAppliesOnce(t *testing.T) {
	p := ledgertest.New()
	p.AddAccount(holder, eth(1), fltUnits(100))

	w, _ := newWalletHarness(t, p, nil, nil)
	if _, err := w.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	intent := &domain.PendingIntent{
		ID:     "intent-1",
		Kind:   domain.IntentPurchase,
		Owner:  w.Address(),
		TxHash: "0xabc",
		Amount: fltUnits(50),
	}
	w.RecordIntentSubmitted(intent)
	w.RecordIntentSubmitted(intent)

	if got := w.Identity().FLTBalance; got.Cmp(fltUnits(50)) != 0 {
		t.Fatalf("balance = %s, want 50 after single optimistic deduction", got)
	}

	w.ReconcileFailed(intent)
	w.ReconcileFailed(intent)
	if got := w.Identity().FLTBalance; got.Cmp(fltUnits(100)) != 0 {
		t.Fatalf("balance = %s, want 100 after single rollback", got)
	}
}

func TestWalletReconcileConfirmedIsIdempotent(t *testing.T) {
	p := ledgertest.New()
	a := p.AddAccount(holder, eth(1), fltUnits(100))

	w, _ := newWalletHarness(t, p, nil, nil)
	if _, err := w.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	intent := &domain.PendingIntent{
		ID:        "intent-2",
		Kind:      domain.IntentPurchase,
		Owner:     w.Address(),
		TxHash:    "0xdef",
		TicketID:  7,
		ConcertID: 1,
		Amount:    fltUnits(50),
	}
	w.RecordIntentSubmitted(intent)

	// The ledger settles the purchase.
	p.FLT[a] = fltUnits(50)

	result := domain.CallResult{Success: true, TxHash: "0xdef"}
	w.ReconcileConfirmed(context.Background(), intent, result)
	w.ReconcileConfirmed(context.Background(), intent, result)

	if got := w.Identity().FLTBalance; got.Cmp(fltUnits(50)) != 0 {
		t.Fatalf("balance = %s, want authoritative 50", got)
	}
	if purchases := w.Purchases(); len(purchases) != 1 {
		t.Fatalf("purchases = %d, want exactly 1", len(purchases))
	}
	if entries := w.Journal(); len(entries) != 1 || entries[0].Status != domain.IntentSucceeded {
		t.Fatalf("unexpected journal: %+v", entries)
	}
}

func TestWalletDisconnectResets(t *testing.T) {
	p := ledgertest.New()
	p.AddAccount(holder, eth(1), fltUnits(100))

	w, sessions := newWalletHarness(t, p, nil, nil)
	ctx := context.Background()
	if _, err := w.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	addr := w.Address()

	hookRuns := 0
	w.RegisterOnDisconnect(func() { hookRuns++ })

	w.Disconnect(ctx)
	w.Disconnect(ctx) // second disconnect is a no-op

	if w.State() != domain.StateDisconnected || w.Identity() != nil {
		t.Fatal("disconnect must reset identity")
	}
	if hookRuns != 1 {
		t.Fatalf("hook runs = %d, want 1", hookRuns)
	}
	if snap, _ := sessions.Load(ctx, addr); snap != nil {
		t.Fatal("disconnect must clear the session snapshot")
	}

	// Reconnecting as a different account must not leak old balances.
	p.AccountList = nil
	p.AddAccount(otherHolder, eth(7), fltUnits(1))
	identity, err := w.Connect(ctx)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if identity.Address == addr {
		t.Fatal("expected a different identity")
	}
	if identity.ETHBalance.Cmp(eth(7)) != 0 {
		t.Fatalf("balance = %s, want fresh 7 ETH", identity.ETHBalance)
	}
	if len(w.Journal()) != 0 || len(w.Purchases()) != 0 {
		t.Fatal("journal must not survive reconnect")
	}
}
