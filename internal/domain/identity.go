// internal/domain/identity.go
package domain

import (
	"math/big"
	"time"
)

// ConnState is the wallet session lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Identity represents the connected wallet session and its cached holdings.
// Balances are caches of ledger state, never the source of truth.
type Identity struct {
	Address     string
	Name        string
	ETHBalance  *big.Int // wei
	FLTBalance  *big.Int // FLT base units (18 decimals)
	NFTCount    int
	Level       VerificationLevel
	ConnectedAt time.Time
}

// VerificationLevel mirrors the on-chain verification registry value.
type VerificationLevel uint8

const (
	LevelNone   VerificationLevel = 0
	LevelBronze VerificationLevel = 1
	LevelSilver VerificationLevel = 2
	LevelGold   VerificationLevel = 3
)

func (l VerificationLevel) String() string {
	switch l {
	case LevelBronze:
		return "Bronze"
	case LevelSilver:
		return "Silver"
	case LevelGold:
		return "Gold"
	default:
		return "None"
	}
}

// JournalType classifies wallet journal entries.
type JournalType string

const (
	JournalPurchase  JournalType = "purchase"
	JournalSale      JournalType = "sale"
	JournalTransfer  JournalType = "transfer"
	JournalSend      JournalType = "send"
	JournalReceive   JournalType = "receive"
	JournalStake     JournalType = "stake"
	JournalUnstake   JournalType = "unstake"
	JournalReward    JournalType = "reward"
	JournalUseTicket JournalType = "use_ticket"
)

// JournalEntry is one locally appended transaction record.
type JournalEntry struct {
	ID           string
	Type         JournalType
	Amount       *big.Int
	Counterparty string
	Purpose      string
	TxHash       string
	Status       IntentStatus
	Timestamp    time.Time
}

// PurchaseRecord is one confirmed ticket purchase.
type PurchaseRecord struct {
	TicketID  uint64
	ConcertID uint64
	Price     *big.Int
	TxHash    string
	Timestamp time.Time
}

// Snapshot is the minimal session cache written after connect/reconcile and
// used only to pre-populate state before the first live refresh. Never
// authoritative.
type Snapshot struct {
	Address    string    `json:"address"`
	ETHBalance string    `json:"eth_balance"`
	FLTBalance string    `json:"flt_balance"`
	NFTCount   int       `json:"nft_count"`
	SavedAt    time.Time `json:"saved_at"`
}
