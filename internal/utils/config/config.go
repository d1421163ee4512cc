package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dwarvesf/btc-forwarder/internal/types/environments"
)

type AppConfig struct {
	Environment environments.Environment
	ApiServer   ApiServerConfig
	Postgres    DBConnection
	Bitcoin     BitcoinConfig
	Forwarder   ForwarderConfig
}

type ApiServerConfig struct {
	AllowedOrigins string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

type BitcoinConfig struct {
	Network           string `validate:"required,oneof=mainnet testnet regtest"`
	WalletWIF         string `validate:"required"`
	BlockstreamAPIURL string `validate:"required,url"`
}

type ForwarderConfig struct {
	DestinationAddress string `validate:"required"`
	FixedFeeSats       int64  `validate:"gt=0"`
	MinConfirmations   int64  `validate:"gte=1"`
	ScanInterval       string `validate:"required"`
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Environment(env),
		ApiServer: ApiServerConfig{
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: os.Getenv("DB_SSL_MODE"),
		},
		Bitcoin: BitcoinConfig{
			Network:           envVarWithDefault("BTC_NETWORK", "testnet"),
			WalletWIF:         os.Getenv("BTC_WALLET_WIF"),
			BlockstreamAPIURL: os.Getenv("BTC_BLOCKSTREAM_API_URL"),
		},
		Forwarder: ForwarderConfig{
			DestinationAddress: os.Getenv("FORWARD_DESTINATION_ADDRESS"),
			FixedFeeSats:       envVarAsInt64("FORWARD_FIXED_FEE_SATS", 1000),
			MinConfirmations:   envVarAsInt64("BTC_MIN_CONFIRMATIONS", 1),
			ScanInterval:       envVarWithDefault("SCAN_INTERVAL", "@every 30s"),
		},
	}
}

// Validate checks that every field required to run the forwarder is present.
// Postgres settings are optional: when DB_HOST is empty the deposit journal is
// disabled and the service runs purely in memory.
func (c *AppConfig) Validate() error {
	v := validator.New()

	if err := v.Struct(c.Bitcoin); err != nil {
		return fmt.Errorf("invalid bitcoin config: %w", err)
	}
	if err := v.Struct(c.Forwarder); err != nil {
		return fmt.Errorf("invalid forwarder config: %w", err)
	}

	return nil
}

// NetworkParams maps the configured network name to btcd chain parameters.
func (c *BitcoinConfig) NetworkParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network: %s", c.Network)
	}
}

// JournalEnabled reports whether the optional postgres deposit journal is configured.
func (c *AppConfig) JournalEnabled() bool {
	return c.Postgres.Host != ""
}

func envVarWithDefault(envName, fallback string) string {
	value := os.Getenv(envName)
	if value == "" {
		return fallback
	}

	return value
}

func envVarAsInt64(envName string, fallback int64) int64 {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return fallback
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		panic(err)
	}

	return value
}
