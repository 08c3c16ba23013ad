// cmd/ticketmirror/main.go

package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"ticket-mirror/internal/config"
	"ticket-mirror/internal/contracts"
	"ticket-mirror/internal/gateway"
	"ticket-mirror/internal/orchestrator"
	"ticket-mirror/internal/state"
	"ticket-mirror/internal/worker"
	"ticket-mirror/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load .env
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load config
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dial the wallet provider
	provider, err := gateway.DialProvider(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.Fatal("failed to connect to provider", zap.Error(err))
	}
	defer provider.Close()

	gw := gateway.New(provider, logger, gateway.Options{
		ReadRetries:    cfg.Mirror.ReadRetries,
		ReadBackoff:    cfg.Mirror.ReadBackoff,
		ReceiptPoll:    cfg.Mirror.ReceiptPoll,
		ConfirmTimeout: cfg.Mirror.ConfirmTimeout,
		MaxGasPrice:    cfg.Ethereum.MaxGasPrice,
	})

	// Contract bindings
	nft, err := contracts.NewTicketNFT(gw, cfg.Contracts.TicketNFT, cfg.Mirror.ProbeLimit, cfg.Ethereum.Confirmations, logger)
	if err != nil {
		logger.Fatal("failed to bind ticket contract", zap.Error(err))
	}
	flt, err := contracts.NewFLT(gw, cfg.Contracts.FLTToken, cfg.Ethereum.Confirmations, logger)
	if err != nil {
		logger.Fatal("failed to bind token contract", zap.Error(err))
	}
	registry, err := contracts.NewVerificationRegistry(gw, cfg.Contracts.VerificationRegistry, logger)
	if err != nil {
		logger.Fatal("failed to bind verification registry", zap.Error(err))
	}

	// Session cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Session.RedisAddr,
		Password: cfg.Session.RedisPassword,
		DB:       cfg.Session.RedisDB,
	})
	defer redisClient.Close()

	var sessions state.SessionStore
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, session cache is in-memory only", zap.Error(err))
		sessions = state.NewMemorySessionStore()
	} else {
		sessions = state.NewRedisSessionStore(redisClient, cfg.Session.Namespace, cfg.Session.TTL, logger)
	}

	chain := gateway.ChainDefinition{
		ChainID:      big.NewInt(cfg.Ethereum.ChainID),
		Name:         cfg.Ethereum.Network,
		RPCURLs:      []string{cfg.Ethereum.RPCURL},
		ExplorerURLs: []string{cfg.Ethereum.Explorer},
		NativeCurrency: gateway.Currency{
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: 18,
		},
	}

	// Containers and orchestrator
	wallet := state.NewWallet(gw, nft, flt, registry, sessions, chain,
		cfg.Mirror.ETHNoiseWei, cfg.Mirror.FLTNoise, logger)
	token := state.NewToken(flt, logger)
	inventory := state.NewInventory(nft, logger)

	orch := orchestrator.New(nft, flt, wallet, inventory, logger)
	token.SetRunner(orch)

	// Connect the identity
	identity, err := wallet.Connect(ctx)
	if err != nil {
		logger.Fatal("failed to connect wallet", zap.Error(err))
	}
	token.Bind(identity.Address)
	inventory.Bind(identity.Address)

	if err := token.Refresh(ctx); err != nil {
		logger.Warn("Initial token refresh failed", zap.Error(err))
	}
	if err := inventory.Reconcile(ctx); err != nil {
		logger.Warn("Initial inventory reconcile failed", zap.Error(err))
	}

	logger.Info("Ledger mirror ready",
		zap.String("address", utils.FormatAddress(identity.Address)),
		zap.String("explorer", utils.ExplorerAddressURL(cfg.Ethereum.Explorer, identity.Address)),
		zap.String("eth_balance", utils.FormatAmount(identity.ETHBalance, "ETH")),
		zap.String("flt_balance", utils.FormatAmount(identity.FLTBalance, "FLT")),
		zap.Int("tickets", inventory.Count()))

	// Background refreshers, stopped automatically on disconnect
	refresher := worker.NewRefresher(wallet, token, inventory, nil,
		cfg.Mirror.RefreshInterval, cfg.Mirror.RateInterval, cfg.Mirror.RewardInterval, logger)
	wallet.RegisterOnDisconnect(refresher.Stop)
	wallet.RegisterOnDisconnect(token.Clear)
	wallet.RegisterOnDisconnect(inventory.Clear)
	go refresher.Start(ctx)

	// Run until signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	wallet.Disconnect(context.Background())
	<-refresher.Done()
}
