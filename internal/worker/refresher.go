// internal/worker/refresher.go
package worker

import (
	"context"
	"sync"
	"time"

	"ticket-mirror/internal/state"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateSource supplies FLT display exchange rates.
type RateSource interface {
	Rates(ctx context.Context) (usd, eth decimal.Decimal, err error)
}

// StaticRateSource serves fixed rates; the default when no price feed is
// configured.
type StaticRateSource struct {
	USD decimal.Decimal
	ETH decimal.Decimal
}

func (s StaticRateSource) Rates(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return s.USD, s.ETH, nil
}

// Refresher keeps the containers current while a session is live: periodic
// balance/inventory reconciliation, exchange-rate refresh, and local reward
// accrual. Started on connect, stopped on disconnect; a ticker surviving
// disconnect is a bug.
type Refresher struct {
	wallet    *state.Wallet
	token     *state.Token
	inventory *state.Inventory
	rates     RateSource
	logger    *zap.Logger

	refreshInterval time.Duration
	rateInterval    time.Duration
	rewardInterval  time.Duration

	stopChan chan bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewRefresher(
	wallet *state.Wallet,
	token *state.Token,
	inventory *state.Inventory,
	rates RateSource,
	refreshInterval, rateInterval, rewardInterval time.Duration,
	logger *zap.Logger,
) *Refresher {
	if rates == nil {
		rates = StaticRateSource{USD: state.DefaultRateUSD, ETH: state.DefaultRateETH}
	}
	return &Refresher{
		wallet:          wallet,
		token:           token,
		inventory:       inventory,
		rates:           rates,
		logger:          logger,
		refreshInterval: refreshInterval,
		rateInterval:    rateInterval,
		rewardInterval:  rewardInterval,
		stopChan:        make(chan bool),
		done:            make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop or ctx cancellation.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("Starting refresh worker",
		zap.Duration("refresh_interval", r.refreshInterval),
		zap.Duration("rate_interval", r.rateInterval),
		zap.Duration("reward_interval", r.rewardInterval))
	defer close(r.done)

	refreshTicker := time.NewTicker(r.refreshInterval)
	defer refreshTicker.Stop()

	rateTicker := time.NewTicker(r.rateInterval)
	defer rateTicker.Stop()

	rewardTicker := time.NewTicker(r.rewardInterval)
	defer rewardTicker.Stop()

	for {
		select {
		case <-refreshTicker.C:
			if err := r.wallet.Refresh(ctx); err != nil {
				r.logger.Error("Balance refresh failed", zap.Error(err))
			}
			if err := r.token.Refresh(ctx); err != nil {
				r.logger.Error("Token refresh failed", zap.Error(err))
			}
			if err := r.inventory.Reconcile(ctx); err != nil {
				r.logger.Error("Inventory reconcile failed", zap.Error(err))
			}

		case <-rateTicker.C:
			usd, eth, err := r.rates.Rates(ctx)
			if err != nil {
				r.logger.Error("Rate refresh failed", zap.Error(err))
				continue
			}
			r.token.SetRates(usd, eth)

		case <-rewardTicker.C:
			r.token.AccrueRewards(time.Now())

		case <-r.stopChan:
			r.logger.Info("Stopping refresh worker")
			return

		case <-ctx.Done():
			r.logger.Info("Context cancelled, stopping refresh worker")
			return
		}
	}
}

// Stop ends the refresh loop. Safe to call more than once; registered as a
// disconnect hook and called again on shutdown.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
}

// Done reports loop exit, for shutdown sequencing in tests and main.
func (r *Refresher) Done() <-chan struct{} {
	return r.done
}
