// internal/domain/ticket.go
package domain

import (
	"math/big"
	"time"
)

// MaxTransferCount caps how many times a ticket may change hands before it
// stops being resellable. Enforced on-chain; mirrored here for local checks.
const MaxTransferCount = 3

// Ticket is one non-fungible ticket as mirrored from the ledger.
type Ticket struct {
	TicketID      uint64
	ConcertID     uint64
	Name          string
	Artist        string
	Venue         string
	EventDate     time.Time
	SeatSection   string
	SeatNumber    uint32
	OriginalPrice *big.Int // FLT base units
	Owner         string
	IsUsed        bool
	TransferCount int
	PurchaseTime  time.Time
}

// Resellable reports whether the ticket can still be listed for resale.
// isUsed is monotonic false→true, transferCount only increases, so a ticket
// that stops being resellable never becomes resellable again.
func (t *Ticket) Resellable() bool {
	return !t.IsUsed && t.TransferCount < MaxTransferCount
}

// Concert is read-only reference data owned by the ledger; cached locally
// for display and purchase-eligibility checks.
type Concert struct {
	ID                   uint64
	Name                 string
	Artist               string
	Venue                string
	Date                 time.Time
	TotalTickets         int
	SoldTickets          int
	OriginalPrice        *big.Int
	MaxResalePrice       *big.Int
	IsActive             bool
	MinVerificationLevel VerificationLevel
}

// SoldOut reports whether no primary tickets remain.
func (c *Concert) SoldOut() bool {
	return c.SoldTickets >= c.TotalTickets
}

// EligibleBuyer checks local purchase eligibility against the cached concert
// state. The contract enforces the same rules authoritatively.
func (c *Concert) EligibleBuyer(level VerificationLevel) error {
	if !c.IsActive {
		return NewError(KindTransactionReverted, "concert is not active")
	}
	if c.SoldOut() {
		return NewError(KindTransactionReverted, "concert is sold out")
	}
	if level < c.MinVerificationLevel {
		return NewError(KindVerificationTooLow, "verification level too low for this concert")
	}
	return nil
}

// ResaleOrder is a seller's standing offer. IsActive transitions true→false
// exactly once, on sale or cancellation.
type ResaleOrder struct {
	OrderID  uint64
	TicketID uint64
	Seller   string
	AskPrice *big.Int
	ListTime time.Time
	Deadline time.Time
	IsActive bool
}
