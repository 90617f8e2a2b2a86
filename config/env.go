package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvConfigFile     = "SOLARB_CONFIG"
	EnvPrivateKey     = "SOLARB_PRIVATE_KEY"
	EnvKeypairFile    = "SOLARB_KEYPAIR_FILE"
	EnvRPCEndpoint    = "SOLARB_RPC_ENDPOINT"
	EnvQuoteEndpoint  = "SOLARB_QUOTE_ENDPOINT"
	EnvBundleEndpoint = "SOLARB_BUNDLE_ENDPOINT"
)

// LoadEnv loads environment variables from .env file
func LoadEnv() error {
	return godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
