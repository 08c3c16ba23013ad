// internal/domain/intent.go
package domain

import (
	"math/big"
	"strconv"
	"time"
)

// IntentKind is the kind of mutating user operation.
type IntentKind string

const (
	IntentPurchase     IntentKind = "purchase"
	IntentTransfer     IntentKind = "transfer"
	IntentListResale   IntentKind = "list_resale"
	IntentCancelResale IntentKind = "cancel_resale"
	IntentBuyResale    IntentKind = "buy_resale"
	IntentUseTicket    IntentKind = "use_ticket"
	IntentStake        IntentKind = "stake"
	IntentUnstake      IntentKind = "unstake"
	IntentClaimRewards IntentKind = "claim_rewards"
	IntentSend         IntentKind = "send"
)

// IntentStatus is the PendingIntent state machine position.
type IntentStatus string

const (
	IntentValidating IntentStatus = "validating"
	IntentApproving  IntentStatus = "approving"
	IntentSubmitted  IntentStatus = "submitted"
	IntentConfirming IntentStatus = "confirming"
	IntentSucceeded  IntentStatus = "succeeded"
	IntentFailed     IntentStatus = "failed"
)

// Terminal reports whether the status ends the intent lifecycle.
func (s IntentStatus) Terminal() bool {
	return s == IntentSucceeded || s == IntentFailed
}

// PendingIntent is one in-flight mutating operation. Transient: created by
// the orchestrator, destroyed on terminal status.
type PendingIntent struct {
	ID        string
	Kind      IntentKind
	Owner     string // identity address
	Status    IntentStatus
	TxHash    string
	CreatedAt time.Time

	// Parameters; which fields are set depends on Kind.
	ConcertID   uint64
	TicketID    uint64
	OrderID     uint64
	SeatSection string
	SeatNumber  uint32
	To          string
	Amount      *big.Int // price, ask price, or token amount
	Deadline    time.Time
	Purpose     string
}

// Resource returns the mutual-exclusion key for this intent. At most one
// active intent per (identity, resource) pair is allowed.
func (i *PendingIntent) Resource() string {
	switch i.Kind {
	case IntentTransfer, IntentListResale, IntentUseTicket:
		return "ticket:" + strconv.FormatUint(i.TicketID, 10)
	case IntentBuyResale, IntentCancelResale:
		return "order:" + strconv.FormatUint(i.OrderID, 10)
	case IntentStake, IntentUnstake, IntentClaimRewards, IntentSend:
		return "flt"
	case IntentPurchase:
		return "concert:" + strconv.FormatUint(i.ConcertID, 10)
	default:
		return string(i.Kind)
	}
}

// CallResult is the uniform envelope returned by every contract write
// method. Callers never see raw provider errors; Err is always a *Error.
type CallResult struct {
	Success     bool
	TxHash      string
	BlockNumber *int64
	GasUsed     *uint64
	Err         error
}

// FailedCall builds a failure envelope from a normalized error.
func FailedCall(err error) CallResult {
	return CallResult{Success: false, Err: err}
}
