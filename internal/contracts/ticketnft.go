// internal/contracts/ticketnft.go
package contracts

import (
	"context"
	"math/big"
	"strings"
	"time"

	"ticket-mirror/internal/domain"
	"ticket-mirror/internal/gateway"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TicketNFT wraps the ticket contract: primary sales, the resale market,
// redemption, transfers, and owned-token enumeration.
type TicketNFT struct {
	binding
	probeLimit uint64
}

func NewTicketNFT(gw *gateway.Gateway, address string, probeLimit uint64, confirmations int, logger *zap.Logger) (*TicketNFT, error) {
	parsed, err := abi.JSON(strings.NewReader(TicketNFTABI))
	if err != nil {
		return nil, err
	}
	return &TicketNFT{
		binding: binding{
			gw:            gw,
			address:       common.HexToAddress(address),
			abi:           parsed,
			logger:        logger,
			confirmations: confirmations,
		},
		probeLimit: probeLimit,
	}, nil
}

// Address returns the contract address, used as the approval spender for
// FLT-denominated purchases.
func (t *TicketNFT) Address() string {
	return t.address.Hex()
}

// ============================================================================
// Read methods
// ============================================================================

func (t *TicketNFT) BalanceOf(ctx context.Context, owner string) (int, error) {
	out, err := t.call(ctx, "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return int(asBig(out[0]).Int64()), nil
}

func (t *TicketNFT) OwnerOf(ctx context.Context, ticketID uint64) (string, error) {
	out, err := t.call(ctx, "ownerOf", new(big.Int).SetUint64(ticketID))
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", domain.NewError(domain.KindInternal, "empty ownerOf result")
	}
	return asAddress(out[0]), nil
}

// CheckTokenOwnership reports whether owner holds the given ticket. A revert
// from a nonexistent token counts as not owned.
func (t *TicketNFT) CheckTokenOwnership(ctx context.Context, owner string, ticketID uint64) (bool, error) {
	actual, err := t.OwnerOf(ctx, ticketID)
	if err != nil {
		if domain.IsKind(err, domain.KindTransactionReverted) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(actual, owner), nil
}

func (t *TicketNFT) TotalSupply(ctx context.Context) (uint64, error) {
	out, err := t.call(ctx, "totalSupply")
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return asBig(out[0]).Uint64(), nil
}

// GetTicket fetches one ticket's full metadata.
func (t *TicketNFT) GetTicket(ctx context.Context, ticketID uint64) (*domain.Ticket, error) {
	out, err := t.call(ctx, "getTicket", new(big.Int).SetUint64(ticketID))
	if err != nil {
		return nil, err
	}
	if len(out) < 12 {
		return nil, domain.NewError(domain.KindInternal, "malformed getTicket result")
	}
	return &domain.Ticket{
		TicketID:      ticketID,
		ConcertID:     asBig(out[0]).Uint64(),
		Name:          asString(out[1]),
		Artist:        asString(out[2]),
		Venue:         asString(out[3]),
		EventDate:     time.Unix(asBig(out[4]).Int64(), 0),
		SeatSection:   asString(out[5]),
		SeatNumber:    asUint32(out[6]),
		OriginalPrice: asBig(out[7]),
		Owner:         asAddress(out[8]),
		IsUsed:        asBool(out[9]),
		TransferCount: int(asBig(out[10]).Int64()),
		PurchaseTime:  time.Unix(asBig(out[11]).Int64(), 0),
	}, nil
}

// GetConcert fetches concert reference data.
func (t *TicketNFT) GetConcert(ctx context.Context, concertID uint64) (*domain.Concert, error) {
	out, err := t.call(ctx, "getConcert", new(big.Int).SetUint64(concertID))
	if err != nil {
		return nil, err
	}
	if len(out) < 10 {
		return nil, domain.NewError(domain.KindInternal, "malformed getConcert result")
	}
	return &domain.Concert{
		ID:                   concertID,
		Name:                 asString(out[0]),
		Artist:               asString(out[1]),
		Venue:                asString(out[2]),
		Date:                 time.Unix(asBig(out[3]).Int64(), 0),
		TotalTickets:         int(asBig(out[4]).Int64()),
		SoldTickets:          int(asBig(out[5]).Int64()),
		OriginalPrice:        asBig(out[6]),
		MaxResalePrice:       asBig(out[7]),
		IsActive:             asBool(out[8]),
		MinVerificationLevel: domain.VerificationLevel(asUint8(out[9])),
	}, nil
}

// ActiveResaleOrders lists the open resale orders for a concert.
func (t *TicketNFT) ActiveResaleOrders(ctx context.Context, concertID uint64) ([]domain.ResaleOrder, error) {
	out, err := t.call(ctx, "getActiveResaleOrders", new(big.Int).SetUint64(concertID))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, domain.NewError(domain.KindInternal, "malformed getActiveResaleOrders result")
	}

	orders := make([]domain.ResaleOrder, 0, len(ids))
	for _, id := range ids {
		order, err := t.GetResaleOrder(ctx, id.Uint64())
		if err != nil {
			return nil, err
		}
		if order.IsActive {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (t *TicketNFT) GetResaleOrder(ctx context.Context, orderID uint64) (*domain.ResaleOrder, error) {
	out, err := t.call(ctx, "getResaleOrder", new(big.Int).SetUint64(orderID))
	if err != nil {
		return nil, err
	}
	if len(out) < 6 {
		return nil, domain.NewError(domain.KindInternal, "malformed getResaleOrder result")
	}
	return &domain.ResaleOrder{
		OrderID:  orderID,
		TicketID: asBig(out[0]).Uint64(),
		Seller:   asAddress(out[1]),
		AskPrice: asBig(out[2]),
		ListTime: time.Unix(asBig(out[3]).Int64(), 0),
		Deadline: time.Unix(asBig(out[4]).Int64(), 0),
		IsActive: asBool(out[5]),
	}, nil
}

// ============================================================================
// Owned-ticket enumeration
// ============================================================================

// OwnedTickets enumerates the tickets held by owner. Three strategies are
// tried in order of cost: the contract's batch getter, ERC-721 Enumerable
// index walking, then a bounded ownership probe over the token id space.
// A strategy failing hands off to the next; only the last failure surfaces.
func (t *TicketNFT) OwnedTickets(ctx context.Context, owner string) ([]domain.Ticket, error) {
	tickets, err := t.ticketsByBatch(ctx, owner)
	if err == nil {
		return tickets, nil
	}
	t.logger.Debug("Batch ticket enumeration failed, trying index walk",
		zap.String("owner", owner), zap.Error(err))

	tickets, err = t.ticketsByIndex(ctx, owner)
	if err == nil {
		return tickets, nil
	}
	t.logger.Debug("Index ticket enumeration failed, probing ownership",
		zap.String("owner", owner), zap.Error(err))

	tickets, err = t.ticketsByProbe(ctx, owner)
	if err != nil {
		t.logger.Warn("All ticket enumeration strategies failed",
			zap.String("owner", owner), zap.Error(err))
		return nil, err
	}
	return tickets, nil
}

// ticketsByBatch uses the contract's getUserTickets helper. An empty reply
// is only trusted when balanceOf agrees the account holds nothing; some
// nodes answer the batch call with an empty array even for holders.
func (t *TicketNFT) ticketsByBatch(ctx context.Context, owner string) ([]domain.Ticket, error) {
	out, err := t.call(ctx, "getUserTickets", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	var ids []*big.Int
	if len(out) > 0 {
		var ok bool
		if ids, ok = out[0].([]*big.Int); !ok {
			return nil, domain.NewError(domain.KindInternal, "malformed getUserTickets result")
		}
	}
	if len(ids) == 0 {
		count, err := t.BalanceOf(ctx, owner)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, domain.NewError(domain.KindInternal, "batch enumeration returned no tickets for a holding account")
		}
		return []domain.Ticket{}, nil
	}
	return t.fetchTickets(ctx, owner, ids)
}

// ticketsByIndex walks tokenOfOwnerByIndex for each held token.
func (t *TicketNFT) ticketsByIndex(ctx context.Context, owner string) ([]domain.Ticket, error) {
	count, err := t.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(owner)
	ids := make([]*big.Int, 0, count)
	for i := 0; i < count; i++ {
		out, err := t.call(ctx, "tokenOfOwnerByIndex", addr, big.NewInt(int64(i)))
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, domain.NewError(domain.KindInternal, "empty tokenOfOwnerByIndex result")
		}
		ids = append(ids, asBig(out[0]))
	}
	return t.fetchTickets(ctx, owner, ids)
}

// ticketsByProbe checks ownerOf for every token id up to min(totalSupply,
// probeLimit). Last resort for contracts without enumeration support.
func (t *TicketNFT) ticketsByProbe(ctx context.Context, owner string) ([]domain.Ticket, error) {
	supply, err := t.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	bound := supply
	if t.probeLimit > 0 && bound > t.probeLimit {
		t.logger.Warn("Probe enumeration truncated at limit",
			zap.Uint64("total_supply", supply),
			zap.Uint64("probe_limit", t.probeLimit))
		bound = t.probeLimit
	}

	var ids []*big.Int
	for id := uint64(1); id <= bound; id++ {
		owned, err := t.CheckTokenOwnership(ctx, owner, id)
		if err != nil {
			return nil, err
		}
		if owned {
			ids = append(ids, new(big.Int).SetUint64(id))
		}
	}
	return t.fetchTickets(ctx, owner, ids)
}

func (t *TicketNFT) fetchTickets(ctx context.Context, owner string, ids []*big.Int) ([]domain.Ticket, error) {
	tickets := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		ticket, err := t.GetTicket(ctx, id.Uint64())
		if err != nil {
			// One broken token must not hide the rest of the inventory.
			t.logger.Warn("Skipping unreadable ticket",
				zap.Uint64("ticket_id", id.Uint64()),
				zap.Error(err))
			continue
		}
		if ticket.Owner == "" {
			ticket.Owner = owner
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, nil
}

// ============================================================================
// Write methods
// ============================================================================

// PurchaseTicket buys a primary ticket. Price is paid in FLT; the caller is
// responsible for ensuring sufficient allowance first.
func (t *TicketNFT) PurchaseTicket(ctx context.Context, from string, concertID uint64, seatSection string, seatNumber uint32, opts *WriteOpts) domain.CallResult {
	return t.send(ctx, from, "purchaseTicket", nil, opts,
		new(big.Int).SetUint64(concertID), seatSection, seatNumber)
}

// ListForResale places an owned ticket on the resale market.
func (t *TicketNFT) ListForResale(ctx context.Context, from string, ticketID uint64, price *big.Int, deadline time.Time, opts *WriteOpts) domain.CallResult {
	return t.send(ctx, from, "listForResale", nil, opts,
		new(big.Int).SetUint64(ticketID), price, big.NewInt(deadline.Unix()))
}

// CancelResale withdraws a standing resale order.
func (t *TicketNFT) CancelResale(ctx context.Context, from string, orderID uint64, opts *WriteOpts) domain.CallResult {
	return t.send(ctx, from, "cancelResale", nil, opts, new(big.Int).SetUint64(orderID))
}

// BuyResale fills a resale order at its ask price (paid in FLT).
func (t *TicketNFT) BuyResale(ctx context.Context, from string, orderID uint64, opts *WriteOpts) domain.CallResult {
	return t.send(ctx, from, "buyResale", nil, opts, new(big.Int).SetUint64(orderID))
}

// UseTicket redeems a ticket at the venue. Irreversible on-chain.
func (t *TicketNFT) UseTicket(ctx context.Context, from string, ticketID uint64, opts *WriteOpts) domain.CallResult {
	return t.send(ctx, from, "useTicket", nil, opts, new(big.Int).SetUint64(ticketID))
}

// Transfer hands a ticket to another address directly.
func (t *TicketNFT) Transfer(ctx context.Context, from, to string, ticketID uint64, opts *WriteOpts) domain.CallResult {
	return t.send(ctx, from, "transferTicket", nil, opts,
		common.HexToAddress(to), new(big.Int).SetUint64(ticketID))
}
