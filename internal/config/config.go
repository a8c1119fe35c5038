package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Chain settings
	RPCUrl           string
	RouterAddress    string
	WalletPrivateKey string
	SlippageBps      int

	// Price feed settings
	PriceFeedBaseURL string
	PriceFeedAPIKey  string
	RetryInterval    time.Duration
	RefreshInterval  time.Duration

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

func Load() *Config {
	return &Config{
		// API
		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getEnv("DEV_MODE", "false") == "true",

		// Chain
		RPCUrl:           getEnv("ETH_RPC_URL", ""),
		RouterAddress:    getEnv("ROUTER_ADDRESS", ""),
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		SlippageBps:      getIntEnv("SLIPPAGE_BPS", 0),

		// Price feed
		PriceFeedBaseURL: getEnv("PRICE_FEED_BASE_URL", ""),
		PriceFeedAPIKey:  getEnv("PRICE_FEED_API_KEY", ""),
		RetryInterval:    getDurationEnv("PRICE_RETRY_INTERVAL", 10*time.Second),
		RefreshInterval:  getDurationEnv("PRICE_REFRESH_INTERVAL", 10*time.Minute),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", ""),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "multiswap"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
	}
}

// Validate catches combinations that would fail at first use: a signing key
// without an RPC endpoint, or a router on chain without a key to call it.
func (c *Config) Validate() error {
	if c.WalletPrivateKey != "" && c.RPCUrl == "" {
		return fmt.Errorf("WALLET_PRIVATE_KEY set but ETH_RPC_URL is empty")
	}
	if c.RPCUrl != "" && c.RouterAddress == "" {
		return fmt.Errorf("ETH_RPC_URL set but ROUTER_ADDRESS is empty")
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("SLIPPAGE_BPS %d out of range 0..10000", c.SlippageBps)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
