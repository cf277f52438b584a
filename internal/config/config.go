package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// RPC settings. Endpoints is a comma-separated list; the first entry is
	// the primary.
	RPCEndpoints        []string
	RPCTimeout          time.Duration
	HealthProbeInterval time.Duration

	// Jupiter settings
	JupiterBaseURL string
	JupiterAPIKey  string

	// Scanner settings
	BaseMint          string
	IntermediateMints []string
	ProbeAmount       uint64
	MaxSlippageBps    uint16
	MinProfit         uint64
	GasEstimate       uint64
	ScanInterval      time.Duration
	MaxConcurrency    int
	QuotesPerSecond   int

	// Flash-loan provider catalog
	ProviderCatalogPath string

	// Signing settings
	SigningMode      string
	SignerPrivateKey string // base58, client mode only
	SignerPublicKey  string

	// Execution settings
	Commitment     string
	ConfirmTimeout time.Duration

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseEnabled  bool
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// API server
	ListenAddr string
	APIKey     string
	DevMode    bool

	// Fee feed
	FeeFeedURL      string
	FeePollInterval time.Duration

	// Advisor (optional)
	AdvisorAPIKey string
	AdvisorModel  string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCEndpoints:        getListEnv("SOLANA_RPC_URLS", []string{"https://api.mainnet-beta.solana.com"}),
		RPCTimeout:          getDurationEnv("RPC_TIMEOUT", 30*time.Second),
		HealthProbeInterval: getDurationEnv("HEALTH_PROBE_INTERVAL", 60*time.Second),

		// Jupiter
		JupiterBaseURL: getEnv("JUPITER_BASE_URL", "https://api.jup.ag/swap/v1"),
		JupiterAPIKey:  getEnv("JUPITER_API_KEY", ""),

		// Scanner
		BaseMint: getEnv("BASE_MINT", "So11111111111111111111111111111111111111112"),
		IntermediateMints: getListEnv("INTERMEDIATE_MINTS", []string{
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
		}),
		ProbeAmount:     getUint64Env("PROBE_AMOUNT", 1_000_000_000), // 1 SOL
		MaxSlippageBps:  uint16(getIntEnv("MAX_SLIPPAGE_BPS", 50)),
		MinProfit:       getUint64Env("MIN_PROFIT", 100_000),
		GasEstimate:     getUint64Env("GAS_ESTIMATE", 5_000),
		ScanInterval:    getDurationEnv("SCAN_INTERVAL", 10*time.Second),
		MaxConcurrency:  getIntEnv("MAX_CONCURRENCY", 4),
		QuotesPerSecond: getIntEnv("QUOTES_PER_SECOND", 8),

		// Flash loans
		ProviderCatalogPath: getEnv("PROVIDER_CATALOG", "providers.toml"),

		// Signing
		SigningMode:      getEnv("SIGNING_MODE", "client"),
		SignerPrivateKey: getEnv("SIGNER_PRIVATE_KEY", ""),
		SignerPublicKey:  getEnv("SIGNER_PUBLIC_KEY", ""),

		// Execution
		Commitment:     getEnv("COMMITMENT", "confirmed"),
		ConfirmTimeout: getDurationEnv("CONFIRM_TIMEOUT", 45*time.Second),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseEnabled:  getBoolEnv("CLICKHOUSE_ENABLED", false),
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "arbitrage"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// API
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		APIKey:     getEnv("API_KEY", ""),
		DevMode:    getBoolEnv("DEV_MODE", false),

		// Fee feed
		FeeFeedURL:      getEnv("FEE_FEED_URL", ""),
		FeePollInterval: getDurationEnv("FEE_POLL_INTERVAL", 5*time.Second),

		// Advisor
		AdvisorAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		AdvisorModel:  getEnv("ADVISOR_MODEL", "openai/gpt-4.1-mini"),
	}
}

// Validate checks the loaded configuration for values that would only fail
// deep inside the pipeline.
func (c *Config) Validate() error {
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	switch c.SigningMode {
	case "client", "server", "enclave":
	default:
		return fmt.Errorf("unknown signing mode %q", c.SigningMode)
	}
	if c.BaseMint == "" {
		return fmt.Errorf("base mint is required")
	}
	if len(c.IntermediateMints) == 0 {
		return fmt.Errorf("at least one intermediate mint is required")
	}
	if c.ProbeAmount == 0 {
		return fmt.Errorf("probe amount must be positive")
	}
	if c.MaxSlippageBps == 0 || c.MaxSlippageBps > 10_000 {
		return fmt.Errorf("max slippage must be in (0, 10000] bps")
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

func getUint64Env(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
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

func getListEnv(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
