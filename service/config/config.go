package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// Required fields are validated at startup so misconfiguration fails fast.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string
	LogFormat  string

	// Network the wallet must be on
	Network chain.Network

	// Wallet provider bridge (JSON-RPC endpoint speaking eth_requestAccounts etc.)
	WalletRPCURL         string
	ProviderPollInterval time.Duration

	// Vault contract
	VaultAddress string

	// Transaction confirmation
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration

	// Split bill
	SplitSuccessWindow time.Duration

	// Optional backends; empty disables the feature
	DatabaseURL  string
	NATSURL      string
	TemporalHost string

	TemporalNamespace string
	TemporalTaskQueue string

	// AI assistant; empty key disables it
	AIAPIKey  string
	AIBaseURL string
	AIModel   string
}

// Load reads configuration from environment variables (and an optional .env
// file) and validates all required fields.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "json")

	// Network
	def := chain.ShardeumSphinx
	chainID, err := parseUint("CHAIN_ID", def.ChainID)
	if err != nil {
		errs = append(errs, err)
	}
	decimals, err := parseInt("NATIVE_CURRENCY_DECIMALS", int(def.Currency.Decimals))
	if err != nil {
		errs = append(errs, err)
	} else if decimals < 0 || decimals > 36 {
		errs = append(errs, fmt.Errorf("NATIVE_CURRENCY_DECIMALS must be between 0 and 36, got %d", decimals))
	}
	cfg.Network = chain.Network{
		ChainID: chainID,
		Name:    getEnvOrDefault("CHAIN_NAME", def.Name),
		Currency: chain.Currency{
			Name:     getEnvOrDefault("NATIVE_CURRENCY_NAME", def.Currency.Name),
			Symbol:   getEnvOrDefault("NATIVE_CURRENCY_SYMBOL", def.Currency.Symbol),
			Decimals: int32(decimals),
		},
		RPCURL:      getEnvOrDefault("CHAIN_RPC_URL", def.RPCURL),
		ExplorerURL: getEnvOrDefault("CHAIN_EXPLORER_URL", def.ExplorerURL),
	}

	// Wallet provider
	cfg.WalletRPCURL = os.Getenv("WALLET_RPC_URL")
	if cfg.WalletRPCURL == "" {
		errs = append(errs, fmt.Errorf("WALLET_RPC_URL is required"))
	}
	cfg.ProviderPollInterval, err = parseDuration("PROVIDER_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	}

	// Vault
	cfg.VaultAddress = os.Getenv("VAULT_CONTRACT_ADDRESS")
	if cfg.VaultAddress == "" {
		errs = append(errs, fmt.Errorf("VAULT_CONTRACT_ADDRESS is required"))
	} else if !chain.IsValidAddress(cfg.VaultAddress) {
		errs = append(errs, fmt.Errorf("VAULT_CONTRACT_ADDRESS %q is not a valid address", cfg.VaultAddress))
	}

	// Confirmation
	cfg.ConfirmationTimeout, err = parseDuration("CONFIRMATION_TIMEOUT", "2m")
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ReceiptPollInterval, err = parseDuration("RECEIPT_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	}
	if cfg.ConfirmationTimeout > 0 && cfg.ReceiptPollInterval >= cfg.ConfirmationTimeout {
		errs = append(errs, fmt.Errorf("RECEIPT_POLL_INTERVAL (%v) must be less than CONFIRMATION_TIMEOUT (%v)",
			cfg.ReceiptPollInterval, cfg.ConfirmationTimeout))
	}

	cfg.SplitSuccessWindow, err = parseDuration("SPLIT_SUCCESS_WINDOW", "3s")
	if err != nil {
		errs = append(errs, err)
	}

	// Optional backends
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "shardpay-split-settlement")

	// Assistant
	cfg.AIAPIKey = os.Getenv("AI_API_KEY")
	cfg.AIBaseURL = getEnvOrDefault("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	cfg.AIModel = getEnvOrDefault("AI_MODEL", "gemini-2.0-flash")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks a configuration that was built without Load.
func (c *Config) Validate() error {
	var errs []error

	if c.Network.ChainID == 0 {
		errs = append(errs, fmt.Errorf("Network.ChainID is required"))
	}
	if c.Network.Currency.Symbol == "" {
		errs = append(errs, fmt.Errorf("Network.Currency.Symbol is required"))
	}
	if c.Network.Currency.Decimals < 0 || c.Network.Currency.Decimals > 36 {
		errs = append(errs, fmt.Errorf("Network.Currency.Decimals must be between 0 and 36"))
	}
	if c.WalletRPCURL == "" {
		errs = append(errs, fmt.Errorf("WalletRPCURL is required"))
	}
	if !chain.IsValidAddress(c.VaultAddress) {
		errs = append(errs, fmt.Errorf("VaultAddress is not a valid address"))
	}
	if c.ConfirmationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmationTimeout must be positive"))
	}
	if c.ReceiptPollInterval <= 0 || c.ReceiptPollInterval >= c.ConfirmationTimeout {
		errs = append(errs, fmt.Errorf("ReceiptPollInterval must be positive and less than ConfirmationTimeout"))
	}
	if c.TemporalHost != "" && c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required when TemporalHost is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// AssistantEnabled reports whether an AI key is configured.
func (c *Config) AssistantEnabled() bool {
	return c.AIAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil || result == 0 {
		return 0, fmt.Errorf("%s: invalid chain id %q", key, value)
	}
	return result, nil
}
