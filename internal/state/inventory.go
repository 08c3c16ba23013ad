// internal/state/inventory.go
package state

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/domain"

	"go.uber.org/zap"
)

// SortKey selects the inventory sort order.
type SortKey string

const (
	SortByDate  SortKey = "date"
	SortByName  SortKey = "name"
	SortByPrice SortKey = "price"
	SortByUsage SortKey = "usage"
)

// Inventory is the ticket container: the owned NFT set as last reconciled
// from the ledger, plus pure projections over it. Mutators are called only
// after on-chain confirmation.
type Inventory struct {
	nft    *contracts.TicketNFT
	logger *zap.Logger

	mu      sync.RWMutex
	owner   string
	tickets map[uint64]domain.Ticket
}

func NewInventory(nft *contracts.TicketNFT, logger *zap.Logger) *Inventory {
	return &Inventory{
		nft:     nft,
		logger:  logger,
		tickets: make(map[uint64]domain.Ticket),
	}
}

// Bind attaches the container to a connected identity.
func (inv *Inventory) Bind(owner string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.owner = owner
	inv.tickets = make(map[uint64]domain.Ticket)
}

// Clear resets the container on disconnect.
func (inv *Inventory) Clear() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.owner = ""
	inv.tickets = make(map[uint64]domain.Ticket)
}

// Reconcile replaces the owned set with a fresh ledger enumeration.
func (inv *Inventory) Reconcile(ctx context.Context) error {
	inv.mu.RLock()
	owner := inv.owner
	inv.mu.RUnlock()
	if owner == "" {
		return domain.NewError(domain.KindNotConnected, "no identity bound")
	}

	owned, err := inv.nft.OwnedTickets(ctx, owner)
	if err != nil {
		return err
	}

	next := make(map[uint64]domain.Ticket, len(owned))
	for _, t := range owned {
		next[t.TicketID] = t
	}

	inv.mu.Lock()
	if inv.owner == owner {
		inv.tickets = next
	}
	inv.mu.Unlock()

	inv.logger.Debug("Inventory reconciled",
		zap.String("owner", owner),
		zap.Int("count", len(next)))
	return nil
}

// ============================================================================
// Projections
// ============================================================================

// All returns every owned ticket, ordered by ascending ticket id.
func (inv *Inventory) All() []domain.Ticket {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(inv.tickets))
	for _, t := range inv.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}

// Get returns one owned ticket by id.
func (inv *Inventory) Get(ticketID uint64) (domain.Ticket, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	t, ok := inv.tickets[ticketID]
	return t, ok
}

// Count returns the owned ticket count.
func (inv *Inventory) Count() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.tickets)
}

// FilteredBy returns the tickets matching pred, ascending ticket id.
func (inv *Inventory) FilteredBy(pred func(domain.Ticket) bool) []domain.Ticket {
	all := inv.All()
	out := make([]domain.Ticket, 0, len(all))
	for _, t := range all {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortedBy returns the tickets ordered by key; equal keys fall back to
// ascending ticket id so the order is deterministic.
func (inv *Inventory) SortedBy(key SortKey) []domain.Ticket {
	out := inv.All()
	less := func(a, b domain.Ticket) bool { return a.TicketID < b.TicketID }
	switch key {
	case SortByDate:
		less = func(a, b domain.Ticket) bool {
			if !a.EventDate.Equal(b.EventDate) {
				return a.EventDate.Before(b.EventDate)
			}
			return a.TicketID < b.TicketID
		}
	case SortByName:
		less = func(a, b domain.Ticket) bool {
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.TicketID < b.TicketID
		}
	case SortByPrice:
		less = func(a, b domain.Ticket) bool {
			if c := a.OriginalPrice.Cmp(b.OriginalPrice); c != 0 {
				return c < 0
			}
			return a.TicketID < b.TicketID
		}
	case SortByUsage:
		// Unused before used.
		less = func(a, b domain.Ticket) bool {
			if a.IsUsed != b.IsUsed {
				return !a.IsUsed
			}
			return a.TicketID < b.TicketID
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Search matches query case-insensitively against concert name, artist, and
// venue.
func (inv *Inventory) Search(query string) []domain.Ticket {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return inv.All()
	}
	return inv.FilteredBy(func(t domain.Ticket) bool {
		return strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Artist), q) ||
			strings.Contains(strings.ToLower(t.Venue), q)
	})
}

// MostRecent returns up to n tickets by descending purchase time.
func (inv *Inventory) MostRecent(n int) []domain.Ticket {
	out := inv.All()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PurchaseTime.Equal(out[j].PurchaseTime) {
			return out[i].PurchaseTime.After(out[j].PurchaseTime)
		}
		return out[i].TicketID < out[j].TicketID
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// ============================================================================
// Post-confirmation mutators
// ============================================================================

// MarkUsed flips a ticket to used. Idempotent: marking a used ticket again
// changes nothing.
func (inv *Inventory) MarkUsed(ticketID uint64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	t, ok := inv.tickets[ticketID]
	if !ok || t.IsUsed {
		return
	}
	t.IsUsed = true
	inv.tickets[ticketID] = t
}

// MarkTransferred removes a ticket that left the owned set.
func (inv *Inventory) MarkTransferred(ticketID uint64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.tickets, ticketID)
}

// Add inserts a newly acquired ticket ahead of the next full reconcile.
func (inv *Inventory) Add(t domain.Ticket) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.owner == "" {
		return
	}
	inv.tickets[t.TicketID] = t
}
