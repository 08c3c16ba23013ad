// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"sync"
	"time"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/state"
	"ticket-mirror/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator drives every mutating intent through its lifecycle:
// validating, approving (FLT-denominated purchases only), submitted,
// confirming, then succeeded or failed. It is the only writer of the
// containers' post-confirmation mutators.
type Orchestrator struct {
	nft       *contracts.TicketNFT
	flt       *contracts.FLT
	wallet    *state.Wallet
	inventory *state.Inventory
	logger    *zap.Logger

	mu       sync.Mutex
	active   map[string]bool           // owner|resource in flight
	concerts map[uint64]domain.Concert // catalog cache
}

func New(
	nft *contracts.TicketNFT,
	flt *contracts.FLT,
	wallet *state.Wallet,
	inventory *state.Inventory,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		nft:       nft,
		flt:       flt,
		wallet:    wallet,
		inventory: inventory,
		logger:    logger,
		active:    make(map[string]bool),
		concerts:  make(map[uint64]domain.Concert),
	}
}

// Run executes one intent end to end. At most one intent may be in flight
// per (identity, resource) pair; a second concurrent intent on the same
// resource fails with ResourceBusy before any validation or network call.
func (o *Orchestrator) Run(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	if intent.ID == "" {
		intent.ID = uuid.New().String()
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now()
	}
	if intent.Owner == "" {
		intent.Owner = o.wallet.Address()
	}
	if intent.Owner == "" {
		return o.fail(intent, domain.NewError(domain.KindNotConnected, "no identity connected"))
	}

	key := intent.Owner + "|" + intent.Resource()
	o.mu.Lock()
	if o.active[key] {
		o.mu.Unlock()
		return o.fail(intent, domain.NewError(domain.KindResourceBusy, "another operation is pending on this resource"))
	}
	o.active[key] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, key)
		o.mu.Unlock()
	}()

	intent.Status = domain.IntentValidating
	o.logger.Info("Intent started",
		zap.String("intent_id", intent.ID),
		zap.String("kind", string(intent.Kind)),
		zap.String("owner", intent.Owner))

	result := o.execute(ctx, intent)
	if !result.Success {
		err := result.Err
		if err == nil {
			err = domain.NewError(domain.KindInternal, "intent failed without a cause")
		}
		result.Err = o.fail(intent, err).Err
		return result
	}

	intent.Status = domain.IntentSucceeded
	o.reconcile(ctx, intent, result)
	o.logger.Info("Intent succeeded",
		zap.String("intent_id", intent.ID),
		zap.String("tx_hash", result.TxHash))
	return result
}

func (o *Orchestrator) execute(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	switch intent.Kind {
	case domain.IntentPurchase:
		return o.purchase(ctx, intent)
	case domain.IntentBuyResale:
		return o.buyResale(ctx, intent)
	case domain.IntentListResale:
		return o.listResale(ctx, intent)
	case domain.IntentCancelResale:
		return o.submit(ctx, intent)
	case domain.IntentTransfer:
		return o.transfer(ctx, intent)
	case domain.IntentUseTicket:
		return o.useTicket(ctx, intent)
	case domain.IntentStake, domain.IntentUnstake, domain.IntentClaimRewards, domain.IntentSend:
		return o.submit(ctx, intent)
	default:
		return domain.FailedCall(domain.NewError(domain.KindInternal, "unknown intent kind"))
	}
}

// ============================================================================
// Per-kind validation
// ============================================================================

func (o *Orchestrator) purchase(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	concert, err := o.Concert(ctx, intent.ConcertID)
	if err != nil {
		return domain.FailedCall(err)
	}
	identity := o.wallet.Identity()
	if identity == nil {
		return domain.FailedCall(domain.NewError(domain.KindNotConnected, "no identity connected"))
	}
	if err := concert.EligibleBuyer(identity.Level); err != nil {
		return domain.FailedCall(err)
	}

	intent.Amount = concert.OriginalPrice
	if identity.FLTBalance.Cmp(concert.OriginalPrice) < 0 {
		return domain.FailedCall(domain.NewError(domain.KindInsufficientBalance, "FLT balance below ticket price"))
	}

	if res := o.ensureAllowance(ctx, intent); res.Err != nil {
		return res
	}
	return o.submit(ctx, intent)
}

func (o *Orchestrator) buyResale(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	order, err := o.nft.GetResaleOrder(ctx, intent.OrderID)
	if err != nil {
		return domain.FailedCall(err)
	}
	if !order.IsActive {
		return domain.FailedCall(domain.NewError(domain.KindTransactionReverted, "resale order is no longer active"))
	}
	intent.TicketID = order.TicketID
	intent.Amount = order.AskPrice

	identity := o.wallet.Identity()
	if identity == nil {
		return domain.FailedCall(domain.NewError(domain.KindNotConnected, "no identity connected"))
	}
	if identity.FLTBalance.Cmp(order.AskPrice) < 0 {
		return domain.FailedCall(domain.NewError(domain.KindInsufficientBalance, "FLT balance below ask price"))
	}

	if res := o.ensureAllowance(ctx, intent); res.Err != nil {
		return res
	}
	return o.submit(ctx, intent)
}

func (o *Orchestrator) listResale(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	ticket, ok := o.inventory.Get(intent.TicketID)
	if !ok {
		return domain.FailedCall(domain.NewError(domain.KindNotResellable, "ticket not in inventory"))
	}
	if !ticket.Resellable() {
		return domain.FailedCall(domain.NewError(domain.KindNotResellable, "ticket is used or at its transfer limit"))
	}

	concert, err := o.Concert(ctx, ticket.ConcertID)
	if err != nil {
		return domain.FailedCall(err)
	}
	if concert.MaxResalePrice != nil && intent.Amount.Cmp(concert.MaxResalePrice) > 0 {
		return domain.FailedCall(domain.NewError(domain.KindPriceAboveCap, "ask price exceeds the resale cap"))
	}
	return o.submit(ctx, intent)
}

func (o *Orchestrator) transfer(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	if !utils.IsValidAddress(intent.To) {
		return domain.FailedCall(domain.NewError(domain.KindInternal, "invalid recipient address"))
	}
	ticket, ok := o.inventory.Get(intent.TicketID)
	if !ok {
		return domain.FailedCall(domain.NewError(domain.KindNotResellable, "ticket not in inventory"))
	}
	if !ticket.Resellable() {
		return domain.FailedCall(domain.NewError(domain.KindNotResellable, "ticket is used or at its transfer limit"))
	}
	return o.submit(ctx, intent)
}

func (o *Orchestrator) useTicket(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	ticket, ok := o.inventory.Get(intent.TicketID)
	if !ok {
		return domain.FailedCall(domain.NewError(domain.KindNotResellable, "ticket not in inventory"))
	}
	if ticket.IsUsed {
		// Redeeming twice is a no-op success with no network call.
		return domain.CallResult{Success: true}
	}
	return o.submit(ctx, intent)
}

// ensureAllowance checks the FLT allowance toward the ticket contract and
// raises it when short. Skipped entirely when the standing allowance covers
// the price.
func (o *Orchestrator) ensureAllowance(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	allowance, err := o.flt.Allowance(ctx, intent.Owner, o.nft.Address())
	if err != nil {
		return domain.FailedCall(err)
	}
	if allowance.Cmp(intent.Amount) >= 0 {
		return domain.CallResult{Success: true}
	}

	intent.Status = domain.IntentApproving
	o.logger.Info("Raising FLT allowance",
		zap.String("intent_id", intent.ID),
		zap.String("amount", intent.Amount.String()))

	res := o.flt.Approve(ctx, intent.Owner, o.nft.Address(), intent.Amount, nil)
	if !res.Success {
		return domain.FailedCall(domain.WrapError(domain.KindApprovalFailed, "token approval failed", res.Err))
	}
	return res
}

// ============================================================================
// Submission and reconciliation
// ============================================================================

// submit dispatches the validated intent to its contract write. The
// broadcast callback advances the state machine and applies the wallet's
// optimistic adjustment.
func (o *Orchestrator) submit(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	intent.Status = domain.IntentSubmitted
	opts := &contracts.WriteOpts{
		OnBroadcast: func(txHash string) {
			intent.TxHash = txHash
			intent.Status = domain.IntentConfirming
			o.wallet.RecordIntentSubmitted(intent)
		},
	}

	switch intent.Kind {
	case domain.IntentPurchase:
		return o.nft.PurchaseTicket(ctx, intent.Owner, intent.ConcertID, intent.SeatSection, intent.SeatNumber, opts)
	case domain.IntentBuyResale:
		return o.nft.BuyResale(ctx, intent.Owner, intent.OrderID, opts)
	case domain.IntentListResale:
		return o.nft.ListForResale(ctx, intent.Owner, intent.TicketID, intent.Amount, intent.Deadline, opts)
	case domain.IntentCancelResale:
		return o.nft.CancelResale(ctx, intent.Owner, intent.OrderID, opts)
	case domain.IntentTransfer:
		return o.nft.Transfer(ctx, intent.Owner, intent.To, intent.TicketID, opts)
	case domain.IntentUseTicket:
		return o.nft.UseTicket(ctx, intent.Owner, intent.TicketID, opts)
	case domain.IntentStake:
		return o.flt.Stake(ctx, intent.Owner, intent.Amount, opts)
	case domain.IntentUnstake:
		return o.flt.Unstake(ctx, intent.Owner, intent.Amount, opts)
	case domain.IntentClaimRewards:
		return o.flt.ClaimRewards(ctx, intent.Owner, opts)
	case domain.IntentSend:
		return o.flt.Transfer(ctx, intent.Owner, intent.To, intent.Amount, opts)
	default:
		return domain.FailedCall(domain.NewError(domain.KindInternal, "unknown intent kind"))
	}
}

// reconcile applies confirmed effects to the containers.
func (o *Orchestrator) reconcile(ctx context.Context, intent *domain.PendingIntent, result domain.CallResult) {
	switch intent.Kind {
	case domain.IntentPurchase, domain.IntentBuyResale:
		o.wallet.ReconcileConfirmed(ctx, intent, result)
		o.invalidateConcert(intent.ConcertID)
		if err := o.inventory.Reconcile(ctx); err != nil {
			o.logger.Warn("Post-purchase inventory reconcile failed",
				zap.String("intent_id", intent.ID),
				zap.Error(err))
		}
	case domain.IntentTransfer:
		o.wallet.ReconcileConfirmed(ctx, intent, result)
		o.inventory.MarkTransferred(intent.TicketID)
	case domain.IntentUseTicket:
		if result.TxHash != "" {
			o.wallet.ReconcileConfirmed(ctx, intent, result)
		}
		o.inventory.MarkUsed(intent.TicketID)
	default:
		o.wallet.ReconcileConfirmed(ctx, intent, result)
	}
}

// fail marks the intent terminal and rolls back any optimistic adjustment.
// Local precondition failures never reached the wallet, so there is nothing
// to roll back.
func (o *Orchestrator) fail(intent *domain.PendingIntent, err error) domain.CallResult {
	intent.Status = domain.IntentFailed
	if domain.LocalPrecondition(err) {
		o.logger.Info("Intent rejected",
			zap.String("intent_id", intent.ID),
			zap.String("kind", string(intent.Kind)),
			zap.String("error_kind", string(domain.KindOf(err))))
		return domain.FailedCall(err)
	}
	o.wallet.ReconcileFailed(intent)
	o.logger.Warn("Intent failed",
		zap.String("intent_id", intent.ID),
		zap.String("kind", string(intent.Kind)),
		zap.String("error_kind", string(domain.KindOf(err))),
		zap.Error(err))
	return domain.FailedCall(err)
}

// ============================================================================
// Concert catalog cache
// ============================================================================

// Concert returns catalog data for a concert, fetching and caching it on
// first use.
func (o *Orchestrator) Concert(ctx context.Context, concertID uint64) (*domain.Concert, error) {
	o.mu.Lock()
	if c, ok := o.concerts[concertID]; ok {
		o.mu.Unlock()
		cp := c
		return &cp, nil
	}
	o.mu.Unlock()

	concert, err := o.nft.GetConcert(ctx, concertID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.concerts[concertID] = *concert
	o.mu.Unlock()
	return concert, nil
}

// PrimeConcert seeds the catalog cache, e.g. from a listings fetch.
func (o *Orchestrator) PrimeConcert(concert domain.Concert) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.concerts[concert.ID] = concert
}

func (o *Orchestrator) invalidateConcert(concertID uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.concerts, concertID)
}
