// internal/state/wallet.go
package state

import (
	"context"
	"math/big"
	"sync"
	"time"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Wallet is the identity container: wallet session lifecycle, cached
// balances, and the local transaction journal. All cached values mirror
// ledger state; the ledger is always authoritative.
type Wallet struct {
	gw       *gateway.Gateway
	nft      *contracts.TicketNFT
	flt      *contracts.FLT
	registry *contracts.VerificationRegistry
	sessions SessionStore
	logger   *zap.Logger

	chain    gateway.ChainDefinition
	ethNoise *big.Int
	fltNoise *big.Int

	mu           sync.RWMutex
	state        domain.ConnState
	identity     *domain.Identity
	journal      []domain.JournalEntry
	purchases    []domain.PurchaseRecord
	applied      map[string]*big.Int // intent id -> optimistic FLT delta
	reconciled   map[string]bool     // intent id -> terminal reconcile done
	onDisconnect []func()
}

func NewWallet(
	gw *gateway.Gateway,
	nft *contracts.TicketNFT,
	flt *contracts.FLT,
	registry *contracts.VerificationRegistry,
	sessions SessionStore,
	chain gateway.ChainDefinition,
	ethNoise, fltNoise *big.Int,
	logger *zap.Logger,
) *Wallet {
	return &Wallet{
		gw:         gw,
		nft:        nft,
		flt:        flt,
		registry:   registry,
		sessions:   sessions,
		chain:      chain,
		ethNoise:   ethNoise,
		fltNoise:   fltNoise,
		logger:     logger,
		state:      domain.StateDisconnected,
		applied:    make(map[string]*big.Int),
		reconciled: make(map[string]bool),
	}
}

// State returns the current session state.
func (w *Wallet) State() domain.ConnState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Identity returns a copy of the connected identity, or nil when
// disconnected.
func (w *Wallet) Identity() *domain.Identity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.identity == nil {
		return nil
	}
	cp := *w.identity
	return &cp
}

// Address returns the connected account address, or "" when disconnected.
func (w *Wallet) Address() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.identity == nil {
		return ""
	}
	return w.identity.Address
}

// RegisterOnDisconnect adds a hook run when the session ends. Used to stop
// refresh timers and clear dependent containers.
func (w *Wallet) RegisterOnDisconnect(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDisconnect = append(w.onDisconnect, fn)
}

// ============================================================================
// Session lifecycle
// ============================================================================

// Connect performs the wallet handshake, ensures the target network, and
// populates the identity. A cached snapshot pre-fills balances so the caller
// sees values immediately; the live fetch then overwrites them. Partial
// fetch failure leaves the session connected with whatever loaded.
func (w *Wallet) Connect(ctx context.Context) (*domain.Identity, error) {
	w.mu.Lock()
	switch w.state {
	case domain.StateConnected:
		cp := *w.identity
		w.mu.Unlock()
		return &cp, nil
	case domain.StateConnecting:
		// Another handshake is mid-flight; let it finish.
		w.mu.Unlock()
		return nil, domain.NewError(domain.KindResourceBusy, "a connection attempt is already in progress")
	}
	w.state = domain.StateConnecting
	w.mu.Unlock()

	address, err := w.gw.Connect(ctx)
	if err != nil {
		w.setDisconnected()
		return nil, err
	}
	if err := w.gw.EnsureNetwork(ctx, w.chain); err != nil {
		w.setDisconnected()
		return nil, err
	}

	identity := &domain.Identity{
		Address:     address,
		ETHBalance:  big.NewInt(0),
		FLTBalance:  big.NewInt(0),
		ConnectedAt: time.Now(),
	}

	// 1. Pre-populate from the session cache, if one survives for this
	// address.
	if snap, err := w.sessions.Load(ctx, address); err == nil && snap != nil {
		if eth, ok := new(big.Int).SetString(snap.ETHBalance, 10); ok {
			identity.ETHBalance = eth
		}
		if flt, ok := new(big.Int).SetString(snap.FLTBalance, 10); ok {
			identity.FLTBalance = flt
		}
		identity.NFTCount = snap.NFTCount
	}

	w.mu.Lock()
	w.identity = identity
	w.state = domain.StateConnected
	w.mu.Unlock()

	// 2. Live fetch replaces the cached values.
	w.fetchHoldings(ctx, address)

	w.logger.Info("Identity connected",
		zap.String("address", address),
		zap.String("level", w.Identity().Level.String()))

	w.saveSnapshot(ctx)
	cp := *w.Identity()
	return &cp, nil
}

// Refresh re-reads balances from the ledger and applies them, ignoring
// deltas below the noise thresholds to avoid flicker from RPC rounding.
func (w *Wallet) Refresh(ctx context.Context) error {
	w.mu.RLock()
	if w.state != domain.StateConnected {
		w.mu.RUnlock()
		return domain.NewError(domain.KindNotConnected, "no identity connected")
	}
	address := w.identity.Address
	w.mu.RUnlock()

	eth, ethErr := w.gw.NativeBalance(ctx, address)
	flt, fltErr := w.flt.BalanceOf(ctx, address)
	count, countErr := w.nft.BalanceOf(ctx, address)

	w.mu.Lock()
	if w.identity != nil && w.identity.Address == address {
		if ethErr == nil {
			w.identity.ETHBalance = applyNoise(w.identity.ETHBalance, eth, w.ethNoise)
		}
		if fltErr == nil {
			w.identity.FLTBalance = applyNoise(w.identity.FLTBalance, flt, w.fltNoise)
		}
		if countErr == nil {
			w.identity.NFTCount = count
		}
	}
	w.mu.Unlock()

	if ethErr != nil {
		return ethErr
	}
	if fltErr != nil {
		return fltErr
	}
	w.saveSnapshot(ctx)
	return countErr
}

// Disconnect ends the session: clears the cached snapshot, runs disconnect
// hooks, and resets the container to its initial state. Safe to call twice.
func (w *Wallet) Disconnect(ctx context.Context) {
	w.mu.Lock()
	if w.state == domain.StateDisconnected {
		w.mu.Unlock()
		return
	}
	address := ""
	if w.identity != nil {
		address = w.identity.Address
	}
	hooks := make([]func(), len(w.onDisconnect))
	copy(hooks, w.onDisconnect)

	w.state = domain.StateDisconnected
	w.identity = nil
	w.journal = nil
	w.purchases = nil
	w.applied = make(map[string]*big.Int)
	w.reconciled = make(map[string]bool)
	w.mu.Unlock()

	if address != "" {
		if err := w.sessions.Delete(ctx, address); err != nil {
			w.logger.Warn("Failed to clear session snapshot", zap.Error(err))
		}
	}
	for _, fn := range hooks {
		fn()
	}
	w.logger.Info("Identity disconnected", zap.String("address", address))
}

// ============================================================================
// Intent reconciliation
// ============================================================================

// RecordIntentSubmitted applies the optimistic effect of a broadcast intent
// and appends a pending journal entry. Applying twice for the same intent id
// is a no-op.
func (w *Wallet) RecordIntentSubmitted(intent *domain.PendingIntent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity == nil || w.applied[intent.ID] != nil {
		return
	}

	delta := big.NewInt(0)
	switch intent.Kind {
	case domain.IntentPurchase, domain.IntentBuyResale:
		if intent.Amount != nil {
			delta = new(big.Int).Neg(intent.Amount)
		}
	}
	w.identity.FLTBalance = new(big.Int).Add(w.identity.FLTBalance, delta)
	w.applied[intent.ID] = delta

	w.prependJournalLocked(domain.JournalEntry{
		ID:           uuid.New().String(),
		Type:         journalType(intent.Kind),
		Amount:       intent.Amount,
		Counterparty: intent.To,
		Purpose:      intent.Purpose,
		TxHash:       intent.TxHash,
		Status:       domain.IntentConfirming,
		Timestamp:    time.Now(),
	})
}

// ReconcileConfirmed replaces the optimistic adjustment with authoritative
// ledger state after an intent confirms. Idempotent per intent id.
func (w *Wallet) ReconcileConfirmed(ctx context.Context, intent *domain.PendingIntent, result domain.CallResult) {
	w.mu.Lock()
	if w.identity == nil || w.reconciled[intent.ID] {
		w.mu.Unlock()
		return
	}
	w.reconciled[intent.ID] = true
	delete(w.applied, intent.ID)
	address := w.identity.Address

	if intent.Kind == domain.IntentPurchase || intent.Kind == domain.IntentBuyResale {
		w.purchases = append([]domain.PurchaseRecord{{
			TicketID:  intent.TicketID,
			ConcertID: intent.ConcertID,
			Price:     intent.Amount,
			TxHash:    result.TxHash,
			Timestamp: time.Now(),
		}}, w.purchases...)
	}
	w.markJournalLocked(result.TxHash, domain.IntentSucceeded)
	w.mu.Unlock()

	// Authoritative re-read; assignment makes double reconciliation harmless.
	w.fetchHoldings(ctx, address)
	w.saveSnapshot(ctx)
}

// ReconcileFailed rolls back the optimistic adjustment of a failed intent.
// Idempotent per intent id.
func (w *Wallet) ReconcileFailed(intent *domain.PendingIntent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity == nil || w.reconciled[intent.ID] {
		return
	}
	w.reconciled[intent.ID] = true

	if delta := w.applied[intent.ID]; delta != nil {
		w.identity.FLTBalance = new(big.Int).Sub(w.identity.FLTBalance, delta)
		delete(w.applied, intent.ID)
	}
	w.markJournalLocked(intent.TxHash, domain.IntentFailed)
}

// ============================================================================
// Journal
// ============================================================================

// AppendJournal records an externally observed entry, most recent first.
func (w *Wallet) AppendJournal(entry domain.JournalEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	w.prependJournalLocked(entry)
}

// Journal returns the transaction journal, most recent first.
func (w *Wallet) Journal() []domain.JournalEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.JournalEntry, len(w.journal))
	copy(out, w.journal)
	return out
}

// Purchases returns confirmed purchase records, most recent first.
func (w *Wallet) Purchases() []domain.PurchaseRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.PurchaseRecord, len(w.purchases))
	copy(out, w.purchases)
	return out
}

// ============================================================================
// Internals
// ============================================================================

func (w *Wallet) setDisconnected() {
	w.mu.Lock()
	w.state = domain.StateDisconnected
	w.identity = nil
	w.mu.Unlock()
}

// fetchHoldings loads ETH balance, FLT balance, NFT count, and verification
// level concurrently. Each field fails independently; failures are logged
// and leave the previous value in place.
func (w *Wallet) fetchHoldings(ctx context.Context, address string) {
	var (
		wg    sync.WaitGroup
		eth   *big.Int
		flt   *big.Int
		count int
		level domain.VerificationLevel

		ethErr, fltErr, countErr, levelErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		eth, ethErr = w.gw.NativeBalance(ctx, address)
	}()
	go func() {
		defer wg.Done()
		flt, fltErr = w.flt.BalanceOf(ctx, address)
	}()
	go func() {
		defer wg.Done()
		count, countErr = w.nft.BalanceOf(ctx, address)
	}()
	go func() {
		defer wg.Done()
		level, levelErr = w.registry.LevelOf(ctx, address)
	}()
	wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.identity == nil || w.identity.Address != address {
		return
	}
	if ethErr == nil {
		w.identity.ETHBalance = eth
	} else {
		w.logger.Warn("ETH balance fetch failed", zap.Error(ethErr))
	}
	if fltErr == nil {
		w.identity.FLTBalance = flt
	} else {
		w.logger.Warn("FLT balance fetch failed", zap.Error(fltErr))
	}
	if countErr == nil {
		w.identity.NFTCount = count
	} else {
		w.logger.Warn("NFT count fetch failed", zap.Error(countErr))
	}
	if levelErr == nil {
		w.identity.Level = level
	} else {
		w.logger.Warn("Verification level fetch failed", zap.Error(levelErr))
	}
}

func (w *Wallet) saveSnapshot(ctx context.Context) {
	w.mu.RLock()
	if w.identity == nil {
		w.mu.RUnlock()
		return
	}
	snap := domain.Snapshot{
		Address:    w.identity.Address,
		ETHBalance: w.identity.ETHBalance.String(),
		FLTBalance: w.identity.FLTBalance.String(),
		NFTCount:   w.identity.NFTCount,
		SavedAt:    time.Now(),
	}
	w.mu.RUnlock()

	if err := w.sessions.Save(ctx, snap); err != nil {
		w.logger.Warn("Session snapshot save failed", zap.Error(err))
	}
}

func (w *Wallet) prependJournalLocked(entry domain.JournalEntry) {
	w.journal = append([]domain.JournalEntry{entry}, w.journal...)
}

func (w *Wallet) markJournalLocked(txHash string, status domain.IntentStatus) {
	if txHash == "" {
		return
	}
	for i := range w.journal {
		if w.journal[i].TxHash == txHash {
			w.journal[i].Status = status
			return
		}
	}
}

// applyNoise keeps the previous value when the delta is below the noise
// threshold.
func applyNoise(prev, next, noise *big.Int) *big.Int {
	if prev == nil || next == nil {
		return next
	}
	delta := new(big.Int).Sub(next, prev)
	if delta.Sign() < 0 {
		delta.Neg(delta)
	}
	if noise != nil && delta.Cmp(noise) < 0 {
		return prev
	}
	return next
}

func journalType(kind domain.IntentKind) domain.JournalType {
	switch kind {
	case domain.IntentPurchase, domain.IntentBuyResale:
		return domain.JournalPurchase
	case domain.IntentTransfer:
		return domain.JournalTransfer
	case domain.IntentSend:
		return domain.JournalSend
	case domain.IntentStake:
		return domain.JournalStake
	case domain.IntentUnstake:
		return domain.JournalUnstake
	case domain.IntentClaimRewards:
		return domain.JournalReward
	case domain.IntentUseTicket:
		return domain.JournalUseTicket
	default:
		return domain.JournalTransfer
	}
}
