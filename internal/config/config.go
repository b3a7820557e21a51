// Package config defines all configuration for the keeper. Config is
// loaded from a YAML file (default: configs/config.yaml) with sensitive
// fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun     bool             `mapstructure:"dry_run"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	API        APIConfig        `mapstructure:"api"`
	Market     MarketConfig     `mapstructure:"market"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Gas        GasConfig        `mapstructure:"gas"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from signer if using a proxy).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
	RPCURL        string `mapstructure:"rpc_url"`
}

// APIConfig holds Polymarket API endpoints and optional pre-derived L2 credentials.
// If ApiKey/Secret/Passphrase are empty, the keeper derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL string `mapstructure:"clob_base_url"`
	WSMarketURL string `mapstructure:"ws_market_url"`
	ApiKey      string `mapstructure:"api_key"`
	Secret      string `mapstructure:"secret"`
	Passphrase  string `mapstructure:"passphrase"`
}

// MarketConfig identifies the single binary market this keeper trades and
// the on-chain contracts its balances/approvals are read against.
type MarketConfig struct {
	ConditionID       string `mapstructure:"condition_id"`
	CollateralAddress string `mapstructure:"collateral_address"`
	CollateralToken   string `mapstructure:"collateral_token"`
	ConditionalToken  string `mapstructure:"conditional_token"`
	ExchangeAddress   string `mapstructure:"exchange_address"`
}

// StrategyConfig selects the active quoter and points at its JSON config
// file (§6 "Strategy config file").
type StrategyConfig struct {
	Kind             string        `mapstructure:"kind"` // "amm" | "bands"
	AMMConfigPath    string        `mapstructure:"amm_config_path"`
	BandsConfigPath  string        `mapstructure:"bands_config_path"`
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
	RefreshFrequency time.Duration `mapstructure:"refresh_frequency"`
	MinSize          float64       `mapstructure:"min_size"`
	MinTick          float64       `mapstructure:"min_tick"`
}

// GasConfig selects the gas-price oracle strategy (§2a).
type GasConfig struct {
	Strategy       string `mapstructure:"strategy"` // "fixed" | "station" | "web3"
	StationURL     string `mapstructure:"station_url"`
	FixedGasPrice  int64  `mapstructure:"fixed_gas_price"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: POLY_PRIVATE_KEY, POLY_API_KEY, POLY_API_SECRET, POLY_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("POLY_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("POLY_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("POLY_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("POLY_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("POLY_DRY_RUN") == "true" || os.Getenv("POLY_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Strategy.SyncInterval == 0 {
		c.Strategy.SyncInterval = 30 * time.Second
	}
	if c.Strategy.RefreshFrequency == 0 {
		c.Strategy.RefreshFrequency = 5 * time.Second
	}
	if c.Strategy.MinSize == 0 {
		c.Strategy.MinSize = 15
	}
	if c.Strategy.MinTick == 0 {
		c.Strategy.MinTick = 0.01
	}
	if c.Gas.Strategy == "" {
		c.Gas.Strategy = "web3"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9008
	}
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set POLY_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.Wallet.RPCURL == "" {
		return fmt.Errorf("wallet.rpc_url is required")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Market.ConditionID == "" {
		return fmt.Errorf("market.condition_id is required")
	}
	if c.Market.CollateralAddress == "" {
		return fmt.Errorf("market.collateral_address is required")
	}
	switch c.Strategy.Kind {
	case "amm":
		if c.Strategy.AMMConfigPath == "" {
			return fmt.Errorf("strategy.amm_config_path is required when strategy.kind is amm")
		}
	case "bands":
		if c.Strategy.BandsConfigPath == "" {
			return fmt.Errorf("strategy.bands_config_path is required when strategy.kind is bands")
		}
	default:
		return fmt.Errorf("strategy.kind must be one of: amm, bands")
	}
	switch c.Gas.Strategy {
	case "fixed", "station", "web3":
	default:
		return fmt.Errorf("gas.strategy must be one of: fixed, station, web3")
	}
	if c.Gas.Strategy == "station" && c.Gas.StationURL == "" {
		return fmt.Errorf("gas.station_url is required when gas.strategy is station")
	}
	return nil
}
