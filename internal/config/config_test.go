package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func validConfig() *Config {
	return &Config{
		StoreBackend:      StoreBolt,
		BoltPath:          "safe-push.db",
		KMSProvider:       "local",
		KMSLocalMasterKey: masterKey,
		TxServiceURL:      "https://safe-transaction.example.com",
		TxServiceTimeout:  30 * time.Second,
		DeviceType:        "IOS",
		Port:              8080,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid bolt with local sealing",
			mutate: func(c *Config) {},
		},
		{
			name: "valid postgres",
			mutate: func(c *Config) {
				c.StoreBackend = StorePostgres
				c.PostgresDSN = "postgres://localhost:5432/push"
			},
		},
		{
			name: "postgres without DSN",
			mutate: func(c *Config) {
				c.StoreBackend = StorePostgres
			},
			wantErr: "POSTGRES_DSN is required",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.StoreBackend = "sqlite" },
			wantErr: "STORE_BACKEND must be",
		},
		{
			name:    "bolt without path",
			mutate:  func(c *Config) { c.BoltPath = "" },
			wantErr: "BOLT_PATH is required",
		},
		{
			name:    "local sealing without master key",
			mutate:  func(c *Config) { c.KMSLocalMasterKey = "" },
			wantErr: "KMS_LOCAL_MASTER_KEY is required",
		},
		{
			name: "valid aws kms",
			mutate: func(c *Config) {
				c.KMSProvider = "aws-kms"
				c.KMSAWSKeyID = "alias/push-keys"
				c.KMSAWSRegion = "eu-central-1"
			},
		},
		{
			name:    "aws kms without key id",
			mutate:  func(c *Config) { c.KMSProvider = "aws-kms" },
			wantErr: "KMS_AWS_KEY_ID is required",
		},
		{
			name: "valid vault",
			mutate: func(c *Config) {
				c.KMSProvider = "vault"
				c.KMSVaultAddress = "http://localhost:8200"
				c.KMSVaultToken = "s.token"
				c.KMSVaultTransitKey = "owner-keys"
			},
		},
		{
			name: "vault without transit key",
			mutate: func(c *Config) {
				c.KMSProvider = "vault"
				c.KMSVaultAddress = "http://localhost:8200"
				c.KMSVaultToken = "s.token"
			},
			wantErr: "KMS_VAULT_TRANSIT_KEY",
		},
		{
			name:    "unknown sealing provider",
			mutate:  func(c *Config) { c.KMSProvider = "gcp" },
			wantErr: "KMS_PROVIDER must be",
		},
		{
			name:    "missing tx service",
			mutate:  func(c *Config) { c.TxServiceURL = "" },
			wantErr: "TX_SERVICE_URL is required",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.TxServiceTimeout = 0 },
			wantErr: "TX_SERVICE_TIMEOUT_SECONDS",
		},
		{
			name:    "negative chain id",
			mutate:  func(c *Config) { c.ChainID = -1 },
			wantErr: "CHAIN_ID",
		},
		{
			name:    "unknown device type",
			mutate:  func(c *Config) { c.DeviceType = "PALM" },
			wantErr: "DEVICE_TYPE",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "PORT must be between",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("KMS_LOCAL_MASTER_KEY", masterKey)
	t.Setenv("TX_SERVICE_URL", "https://safe-transaction.example.com")
	t.Setenv("TX_SERVICE_RPS", "2.5")
	t.Setenv("TX_SERVICE_TIMEOUT_SECONDS", "10")
	t.Setenv("CHAIN_ID", "100")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DEVICE_TYPE", "android")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreBolt, cfg.StoreBackend)
	assert.Equal(t, "safe-push.db", cfg.BoltPath)
	assert.Equal(t, "local", cfg.KMSProvider)
	assert.Equal(t, 2.5, cfg.TxServiceRPS)
	assert.Equal(t, 10*time.Second, cfg.TxServiceTimeout)
	assert.Equal(t, int64(100), cfg.ChainID)
	assert.Equal(t, 8080, cfg.Port, "unparseable values fall back to the default")
	assert.Equal(t, "io.gnosis.multisig", cfg.AppBundle)
	assert.Equal(t, "ANDROID", cfg.DeviceType)

	sealer := cfg.SealerConfig()
	assert.Equal(t, masterKey, sealer.LocalMasterKeyHex)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("KMS_LOCAL_MASTER_KEY", masterKey)
	t.Setenv("TX_SERVICE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
