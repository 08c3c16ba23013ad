// internal/config/config.go
package config

import (
	"math/big"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Ethereum  EthereumConfig
	Contracts ContractConfig
	Mirror    MirrorConfig
	Session   SessionConfig
}

type EthereumConfig struct {
	Network       string // mainnet, sepolia
	RPCURL        string
	ChainID       int64
	Explorer      string
	MaxGasPrice   *big.Int // wei
	Confirmations int
}

type ContractConfig struct {
	TicketNFT            string
	FLTToken             string
	VerificationRegistry string
}

type MirrorConfig struct {
	// Read retry policy; writes are never retried.
	ReadRetries     int
	ReadBackoff     time.Duration
	ReceiptPoll     time.Duration
	ConfirmTimeout  time.Duration
	RefreshInterval time.Duration
	RateInterval    time.Duration
	RewardInterval  time.Duration

	// Balance deltas below these thresholds are ignored on refresh to avoid
	// flicker from RPC rounding.
	ETHNoiseWei *big.Int
	FLTNoise    *big.Int

	// Upper bound for the linear-probe enumeration fallback.
	ProbeLimit uint64
}

type SessionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Namespace     string
	TTL           time.Duration
}

func Load(logger *zap.Logger) (*Config, error) {
	// ============================================================================
	// Ethereum Configuration
	// ============================================================================
	network := getEnv("ETHEREUM_NETWORK", "sepolia")
	rpcURL := getEnv("ETHEREUM_RPC_URL", "")
	explorer := getEnv("ETHEREUM_EXPLORER", "")

	if rpcURL == "" {
		switch network {
		case "mainnet":
			rpcURL = "https://ethereum-rpc.publicnode.com"
		default:
			rpcURL = "https://ethereum-sepolia-rpc.publicnode.com"
		}
	}

	var chainID int64
	switch network {
	case "mainnet":
		chainID = 1
	case "sepolia":
		chainID = 11155111
	default:
		chainID = getEnvAsInt64("ETHEREUM_CHAIN_ID", 11155111)
	}

	if explorer == "" {
		switch network {
		case "mainnet":
			explorer = "https://etherscan.io"
		default:
			explorer = "https://sepolia.etherscan.io"
		}
	}

	// Max gas price in Gwei (default 100 Gwei)
	maxGasGwei := getEnvAsInt64("ETHEREUM_MAX_GAS_PRICE", 100)

	// ============================================================================
	// Contract Addresses
	// ============================================================================
	ticketNFT := getEnv("TICKET_NFT_ADDRESS", "0x0987654321098765432109876543210987654321")
	fltToken := getEnv("FLT_TOKEN_ADDRESS", "0x1234567890123456789012345678901234567890")
	registry := getEnv("VERIFICATION_REGISTRY_ADDRESS", "0x3333333333333333333333333333333333333333")

	cfg := &Config{
		Ethereum: EthereumConfig{
			Network:       network,
			RPCURL:        rpcURL,
			ChainID:       chainID,
			Explorer:      explorer,
			MaxGasPrice:   new(big.Int).Mul(big.NewInt(maxGasGwei), big.NewInt(1e9)),
			Confirmations: getEnvAsInt("ETHEREUM_CONFIRMATIONS", 2),
		},
		Contracts: ContractConfig{
			TicketNFT:            ticketNFT,
			FLTToken:             fltToken,
			VerificationRegistry: registry,
		},
		Mirror: MirrorConfig{
			ReadRetries:     getEnvAsInt("MIRROR_READ_RETRIES", 3),
			ReadBackoff:     getEnvAsDuration("MIRROR_READ_BACKOFF", 500*time.Millisecond),
			ReceiptPoll:     getEnvAsDuration("MIRROR_RECEIPT_POLL", 2*time.Second),
			ConfirmTimeout:  getEnvAsDuration("MIRROR_CONFIRM_TIMEOUT", 5*time.Minute),
			RefreshInterval: getEnvAsDuration("MIRROR_REFRESH_INTERVAL", 30*time.Second),
			RateInterval:    getEnvAsDuration("MIRROR_RATE_INTERVAL", 30*time.Second),
			RewardInterval:  getEnvAsDuration("MIRROR_REWARD_INTERVAL", time.Minute),
			ETHNoiseWei:     big.NewInt(100_000_000_000_000), // 0.0001 ETH
			FLTNoise:        big.NewInt(10_000_000_000_000_000), // 0.01 FLT
			ProbeLimit:      uint64(getEnvAsInt64("MIRROR_PROBE_LIMIT", 10000)),
		},
		Session: SessionConfig{
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			Namespace:     getEnv("SESSION_NAMESPACE", "ticketverse"),
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		},
	}

	logger.Info("Configuration loaded",
		zap.String("network", cfg.Ethereum.Network),
		zap.Int64("chain_id", cfg.Ethereum.ChainID),
		zap.String("ticket_nft", cfg.Contracts.TicketNFT),
		zap.String("flt_token", cfg.Contracts.FLTToken))

	return cfg, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	return int(getEnvAsInt64(key, int64(defaultValue)))
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
