// internal/state/token.go
package state

import (
	"context"
	"math/big"
	"sync"
	"time"

	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Display-only economics. The contract computes actual rewards; these drive
// the local estimate between refreshes.
var (
	DefaultRateUSD  = decimal.RequireFromString("0.85")   // USD per FLT
	DefaultRateETH  = decimal.RequireFromString("0.0003") // ETH per FLT
	StakingAPY      = decimal.RequireFromString("12.5")   // percent
	DailyRewardRate = decimal.RequireFromString("0.0003") // FLT per staked FLT per day
)

var fltUnit = decimal.New(1, 18)

// IntentRunner executes a mutating intent end to end. The orchestrator
// implements it; containers stay free of submission mechanics.
type IntentRunner interface {
	Run(ctx context.Context, intent *domain.PendingIntent) domain.CallResult
}

// Token is the fungible-token container: liquid balance, staked total,
// accrued rewards, display exchange rates, and the token journal.
type Token struct {
	flt    *contracts.FLT
	logger *zap.Logger

	mu          sync.RWMutex
	runner      IntentRunner
	owner       string
	balance     *big.Int
	staked      *big.Int
	rewards     *big.Int
	rateUSD     decimal.Decimal
	rateETH     decimal.Decimal
	lastAccrual time.Time
	journal     []domain.JournalEntry
}

func NewToken(flt *contracts.FLT, logger *zap.Logger) *Token {
	return &Token{
		flt:     flt,
		logger:  logger,
		balance: big.NewInt(0),
		staked:  big.NewInt(0),
		rewards: big.NewInt(0),
		rateUSD: DefaultRateUSD,
		rateETH: DefaultRateETH,
	}
}

// SetRunner wires the intent executor after construction.
func (t *Token) SetRunner(runner IntentRunner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runner = runner
}

// Bind attaches the container to a connected identity.
func (t *Token) Bind(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner = owner
	t.lastAccrual = time.Now()
}

// Clear resets the container on disconnect.
func (t *Token) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner = ""
	t.balance = big.NewInt(0)
	t.staked = big.NewInt(0)
	t.rewards = big.NewInt(0)
	t.journal = nil
	t.lastAccrual = time.Time{}
}

// Balances returns (liquid, staked, rewards) copies.
func (t *Token) Balances() (*big.Int, *big.Int, *big.Int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.balance), new(big.Int).Set(t.staked), new(big.Int).Set(t.rewards)
}

// Journal returns the token journal, most recent first.
func (t *Token) Journal() []domain.JournalEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.JournalEntry, len(t.journal))
	copy(out, t.journal)
	return out
}

// Refresh replaces the cached balances with authoritative ledger reads.
// Rewards read from the contract also reset the local accrual clock.
func (t *Token) Refresh(ctx context.Context) error {
	t.mu.RLock()
	owner := t.owner
	t.mu.RUnlock()
	if owner == "" {
		return domain.NewError(domain.KindNotConnected, "no identity bound")
	}

	balance, err := t.flt.BalanceOf(ctx, owner)
	if err != nil {
		return err
	}
	staked, err := t.flt.StakedBalance(ctx, owner)
	if err != nil {
		return err
	}
	rewards, err := t.flt.PendingRewards(ctx, owner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.owner == owner {
		t.balance = balance
		t.staked = staked
		t.rewards = rewards
		t.lastAccrual = time.Now()
	}
	t.mu.Unlock()
	return nil
}

// ============================================================================
// Mutating operations
// ============================================================================

// Stake locks amount of the liquid balance. Fails locally on insufficient
// balance without touching the network; on chain failure the optimistic
// adjustment is rolled back.
func (t *Token) Stake(ctx context.Context, amount *big.Int) domain.CallResult {
	t.mu.Lock()
	if t.owner == "" {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindNotConnected, "no identity bound"))
	}
	if amount == nil || amount.Sign() <= 0 || t.balance.Cmp(amount) < 0 {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindInsufficientBalance, "stake amount exceeds liquid balance"))
	}
	owner := t.owner
	t.balance = new(big.Int).Sub(t.balance, amount)
	t.staked = new(big.Int).Add(t.staked, amount)
	t.mu.Unlock()

	result := t.run(ctx, &domain.PendingIntent{
		ID:     uuid.New().String(),
		Kind:   domain.IntentStake,
		Owner:  owner,
		Amount: amount,
	})
	if !result.Success {
		t.mu.Lock()
		t.balance = new(big.Int).Add(t.balance, amount)
		t.staked = new(big.Int).Sub(t.staked, amount)
		t.mu.Unlock()
		return result
	}

	t.record(domain.JournalStake, amount, "", result.TxHash)
	return result
}

// Unstake releases amount back to the liquid balance.
func (t *Token) Unstake(ctx context.Context, amount *big.Int) domain.CallResult {
	t.mu.Lock()
	if t.owner == "" {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindNotConnected, "no identity bound"))
	}
	if amount == nil || amount.Sign() <= 0 || t.staked.Cmp(amount) < 0 {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindInsufficientStaked, "unstake amount exceeds staked balance"))
	}
	owner := t.owner
	t.staked = new(big.Int).Sub(t.staked, amount)
	t.balance = new(big.Int).Add(t.balance, amount)
	t.mu.Unlock()

	result := t.run(ctx, &domain.PendingIntent{
		ID:     uuid.New().String(),
		Kind:   domain.IntentUnstake,
		Owner:  owner,
		Amount: amount,
	})
	if !result.Success {
		t.mu.Lock()
		t.staked = new(big.Int).Add(t.staked, amount)
		t.balance = new(big.Int).Sub(t.balance, amount)
		t.mu.Unlock()
		return result
	}

	t.record(domain.JournalUnstake, amount, "", result.TxHash)
	return result
}

// ClaimRewards pays accrued rewards into the liquid balance.
func (t *Token) ClaimRewards(ctx context.Context) domain.CallResult {
	t.mu.Lock()
	if t.owner == "" {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindNotConnected, "no identity bound"))
	}
	if t.rewards.Sign() <= 0 {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindNoRewards, "no rewards to claim"))
	}
	owner := t.owner
	claimed := new(big.Int).Set(t.rewards)
	t.balance = new(big.Int).Add(t.balance, claimed)
	t.rewards = big.NewInt(0)
	t.mu.Unlock()

	result := t.run(ctx, &domain.PendingIntent{
		ID:     uuid.New().String(),
		Kind:   domain.IntentClaimRewards,
		Owner:  owner,
		Amount: claimed,
	})
	if !result.Success {
		t.mu.Lock()
		t.balance = new(big.Int).Sub(t.balance, claimed)
		t.rewards = claimed
		t.mu.Unlock()
		return result
	}

	t.record(domain.JournalReward, claimed, "", result.TxHash)
	return result
}

// Send transfers tokens to another address.
func (t *Token) Send(ctx context.Context, to string, amount *big.Int) domain.CallResult {
	t.mu.Lock()
	if t.owner == "" {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindNotConnected, "no identity bound"))
	}
	if amount == nil || amount.Sign() <= 0 || t.balance.Cmp(amount) < 0 {
		t.mu.Unlock()
		return domain.FailedCall(domain.NewError(domain.KindInsufficientBalance, "send amount exceeds liquid balance"))
	}
	owner := t.owner
	t.balance = new(big.Int).Sub(t.balance, amount)
	t.mu.Unlock()

	result := t.run(ctx, &domain.PendingIntent{
		ID:     uuid.New().String(),
		Kind:   domain.IntentSend,
		Owner:  owner,
		To:     to,
		Amount: amount,
	})
	if !result.Success {
		t.mu.Lock()
		t.balance = new(big.Int).Add(t.balance, amount)
		t.mu.Unlock()
		return result
	}

	t.record(domain.JournalSend, amount, to, result.TxHash)
	return result
}

// ============================================================================
// Rates and accrual
// ============================================================================

// SetRates updates the display exchange rates.
func (t *Token) SetRates(usd, eth decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rateUSD = usd
	t.rateETH = eth
}

// Rates returns (USD per FLT, ETH per FLT).
func (t *Token) Rates() (decimal.Decimal, decimal.Decimal) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rateUSD, t.rateETH
}

// ToUSD converts an FLT base-unit amount to its USD display value.
func (t *Token) ToUSD(amount *big.Int) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return decimal.NewFromBigInt(amount, 0).Div(fltUnit).Mul(t.rateUSD)
}

// ToETH converts an FLT base-unit amount to its ETH display value.
func (t *Token) ToETH(amount *big.Int) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return decimal.NewFromBigInt(amount, 0).Div(fltUnit).Mul(t.rateETH)
}

// AccrueRewards advances the local reward estimate by elapsed wall time at
// the fixed daily rate. The next Refresh replaces the estimate with the
// contract's number.
func (t *Token) AccrueRewards(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owner == "" || t.staked.Sign() <= 0 || t.lastAccrual.IsZero() {
		return
	}
	elapsed := now.Sub(t.lastAccrual)
	if elapsed <= 0 {
		return
	}
	t.lastAccrual = now

	fraction := decimal.NewFromFloat(elapsed.Seconds() / 86400.0)
	accrued := decimal.NewFromBigInt(t.staked, 0).
		Mul(DailyRewardRate).
		Mul(fraction)
	t.rewards = new(big.Int).Add(t.rewards, accrued.BigInt())
}

// ============================================================================
// Internals
// ============================================================================

func (t *Token) run(ctx context.Context, intent *domain.PendingIntent) domain.CallResult {
	t.mu.RLock()
	runner := t.runner
	t.mu.RUnlock()
	if runner == nil {
		return domain.FailedCall(domain.NewError(domain.KindInternal, "no intent runner wired"))
	}
	return runner.Run(ctx, intent)
}

func (t *Token) record(kind domain.JournalType, amount *big.Int, counterparty, txHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.journal = append([]domain.JournalEntry{{
		ID:           uuid.New().String(),
		Type:         kind,
		Amount:       amount,
		Counterparty: counterparty,
		TxHash:       txHash,
		Status:       domain.IntentSucceeded,
		Timestamp:    time.Now(),
	}}, t.journal...)
}
