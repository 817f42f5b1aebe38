package main

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds the signetd service configuration, read from the environment.
// A .env file in the working directory is loaded first when present.
type Config struct {
	// ListenAddr is the address the websocket RPC server binds to.
	ListenAddr string `env:"SIGNET_LISTEN_ADDR" env-default:":8000"`
	// MetricsAddr is the address the Prometheus /metrics server binds to.
	MetricsAddr string `env:"SIGNET_METRICS_ADDR" env-default:":9090"`

	// PrivateKeyHex is the node's signing key: 32 bytes, hex encoded.
	PrivateKeyHex string `env:"SIGNET_PRIVATE_KEY" validate:"required"`
	// Network selects the address network for signing and verification.
	Network string `env:"SIGNET_NETWORK" env-default:"mainnet" validate:"oneof=mainnet testnet3 regtest simnet"`

	// DatabaseURL points at the audit store: a postgres:// URL or a
	// file: sqlite path. Empty means in-memory sqlite.
	DatabaseURL string `env:"SIGNET_DATABASE_URL" env-default:""`

	LogLevel   string `env:"SIGNET_LOG_LEVEL" env-default:"info"`
	LogFormat  string `env:"SIGNET_LOG_FORMAT" env-default:"logfmt" validate:"oneof=logfmt json"`
	LogBackend string `env:"SIGNET_LOG_BACKEND" env-default:"zap" validate:"oneof=zap ipfs"`
}

// LoadConfig reads the configuration from .env and the environment and
// validates it.
func LoadConfig() (Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ChainParams resolves the configured network name.
func (c Config) ChainParams() (*chaincfg.Params, error) {
	switch c.Network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network: %s", c.Network)
	}
}
