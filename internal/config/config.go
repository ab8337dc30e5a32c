package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/safe-mobile/safe-push/internal/keystore"
)

// Store backends
const (
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Config holds the service configuration, read from the environment
type Config struct {
	// State storage
	StoreBackend string
	BoltPath     string
	PostgresDSN  string

	// Owner key sealing
	KMSProvider        string
	KMSLocalMasterKey  string
	KMSAWSKeyID        string
	KMSAWSRegion       string
	KMSVaultAddress    string
	KMSVaultToken      string
	KMSVaultTransitKey string

	// Transaction service
	TxServiceURL     string
	TxServiceRPS     float64
	TxServiceTimeout time.Duration

	// Client build reported on registration
	AppBundle      string
	AppVersion     string
	AppBuildNumber string
	DeviceType     string

	// Chain
	ChainID   int64
	EthRPCURL string

	// Control API
	Port             int
	ControlTokenHash string
	ControlRPS       float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreBolt)),
		BoltPath:           getEnv("BOLT_PATH", "safe-push.db"),
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		KMSProvider:        getEnv("KMS_PROVIDER", keystore.ProviderLocal),
		KMSLocalMasterKey:  getEnv("KMS_LOCAL_MASTER_KEY", ""),
		KMSAWSKeyID:        getEnv("KMS_AWS_KEY_ID", ""),
		KMSAWSRegion:       getEnv("KMS_AWS_REGION", ""),
		KMSVaultAddress:    getEnv("KMS_VAULT_ADDRESS", ""),
		KMSVaultToken:      getEnv("KMS_VAULT_TOKEN", ""),
		KMSVaultTransitKey: getEnv("KMS_VAULT_TRANSIT_KEY", ""),
		TxServiceURL:       getEnv("TX_SERVICE_URL", ""),
		TxServiceRPS:       getEnvFloat("TX_SERVICE_RPS", 5),
		TxServiceTimeout:   time.Duration(getEnvInt("TX_SERVICE_TIMEOUT_SECONDS", 30)) * time.Second,
		AppBundle:          getEnv("APP_BUNDLE", "io.gnosis.multisig"),
		AppVersion:         getEnv("APP_VERSION", "dev"),
		AppBuildNumber:     getEnv("APP_BUILD_NUMBER", "0"),
		DeviceType:         strings.ToUpper(getEnv("DEVICE_TYPE", "IOS")),
		ChainID:            int64(getEnvInt("CHAIN_ID", 0)),
		EthRPCURL:          getEnv("ETH_RPC_URL", ""),
		Port:               getEnvInt("PORT", 8080),
		ControlTokenHash:   getEnv("CONTROL_TOKEN_HASH", ""),
		ControlRPS:         getEnvFloat("CONTROL_RPS", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required when STORE_BACKEND is 'bolt'")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND is 'postgres'")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be 'bolt' or 'postgres', got: %s", c.StoreBackend)
	}

	switch c.KMSProvider {
	case keystore.ProviderLocal:
		if c.KMSLocalMasterKey == "" {
			return fmt.Errorf("KMS_LOCAL_MASTER_KEY is required when KMS_PROVIDER is 'local'")
		}
	case keystore.ProviderAWSKMS:
		if c.KMSAWSKeyID == "" {
			return fmt.Errorf("KMS_AWS_KEY_ID is required when KMS_PROVIDER is 'aws-kms'")
		}
	case keystore.ProviderVault:
		if c.KMSVaultAddress == "" || c.KMSVaultToken == "" || c.KMSVaultTransitKey == "" {
			return fmt.Errorf("KMS_VAULT_ADDRESS, KMS_VAULT_TOKEN and KMS_VAULT_TRANSIT_KEY are required when KMS_PROVIDER is 'vault'")
		}
	default:
		return fmt.Errorf("KMS_PROVIDER must be 'local', 'aws-kms' or 'vault', got: %s", c.KMSProvider)
	}

	if c.TxServiceURL == "" {
		return fmt.Errorf("TX_SERVICE_URL is required")
	}
	if c.TxServiceTimeout <= 0 {
		return fmt.Errorf("TX_SERVICE_TIMEOUT_SECONDS must be positive")
	}
	if c.ChainID < 0 {
		return fmt.Errorf("CHAIN_ID must not be negative")
	}
	switch c.DeviceType {
	case "IOS", "ANDROID", "WEB":
	default:
		return fmt.Errorf("DEVICE_TYPE must be IOS, ANDROID or WEB, got: %s", c.DeviceType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	return nil
}

// SealerConfig returns the key sealing settings
func (c *Config) SealerConfig() *keystore.SealerConfig {
	return &keystore.SealerConfig{
		Provider:          c.KMSProvider,
		LocalMasterKeyHex: c.KMSLocalMasterKey,
		AWSKMSKeyID:       c.KMSAWSKeyID,
		AWSKMSRegion:      c.KMSAWSRegion,
		VaultAddress:      c.KMSVaultAddress,
		VaultToken:        c.KMSVaultToken,
		VaultTransitKey:   c.KMSVaultTransitKey,
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
