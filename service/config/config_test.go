package config

import (
	"testing"
	"time"

	"github.com/brojonat/shardpay/service/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVault = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func setRequired(t *testing.T) {
	t.Setenv("WALLET_RPC_URL", "http://localhost:8545")
	t.Setenv("VAULT_CONTRACT_ADDRESS", testVault)
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, chain.ShardeumSphinx, cfg.Network)
	assert.Equal(t, testVault, cfg.VaultAddress)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmationTimeout)
	assert.Equal(t, 2*time.Second, cfg.ReceiptPollInterval)
	assert.Equal(t, 3*time.Second, cfg.SplitSuccessWindow)
	assert.Equal(t, "shardpay-split-settlement", cfg.TemporalTaskQueue)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.AssistantEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("WALLET_RPC_URL", "")
	t.Setenv("VAULT_CONTRACT_ADDRESS", "")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "WALLET_RPC_URL is required")
	assert.Contains(t, err.Error(), "VAULT_CONTRACT_ADDRESS is required")
}

func TestLoad_InvalidVaultAddress(t *testing.T) {
	setRequired(t)
	t.Setenv("VAULT_CONTRACT_ADDRESS", "0x1234")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid address")
}

func TestLoad_InvalidDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIRMATION_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_PollIntervalMustBeShorterThanTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIRMATION_TIMEOUT", "5s")
	t.Setenv("RECEIPT_POLL_INTERVAL", "10s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be less than CONFIRMATION_TIMEOUT")
}

func TestLoad_CustomNetwork(t *testing.T) {
	setRequired(t)
	t.Setenv("CHAIN_ID", "31337")
	t.Setenv("CHAIN_NAME", "Localhost")
	t.Setenv("NATIVE_CURRENCY_SYMBOL", "ETH")
	t.Setenv("AI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), cfg.Network.ChainID)
	assert.Equal(t, "Localhost", cfg.Network.Name)
	assert.Equal(t, "ETH", cfg.Network.Currency.Symbol)
	assert.Equal(t, int32(18), cfg.Network.Currency.Decimals)
	assert.True(t, cfg.AssistantEnabled())
}

func TestLoad_BadDecimals(t *testing.T) {
	setRequired(t)
	t.Setenv("NATIVE_CURRENCY_DECIMALS", "99")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 36")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Network:             chain.ShardeumSphinx,
		WalletRPCURL:        "http://localhost:8545",
		VaultAddress:        testVault,
		ConfirmationTimeout: time.Minute,
		ReceiptPollInterval: time.Second,
	}
	require.NoError(t, cfg.Validate())

	cfg.VaultAddress = "nope"
	cfg.ReceiptPollInterval = 2 * time.Minute
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VaultAddress")
	assert.Contains(t, err.Error(), "ReceiptPollInterval")
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("WALLET_RPC_URL", "")
	t.Setenv("VAULT_CONTRACT_ADDRESS", "")
	assert.Panics(t, func() { MustLoad() })
}
