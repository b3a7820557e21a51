package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

const minimalValidConfig = `
wallet:
  private_key: "0xabc"
  chain_id: 137
  rpc_url: "https://rpc.example"
api:
  clob_base_url: "https://clob.example"
market:
  condition_id: "0xcond"
  collateral_address: "0xcollateral"
strategy:
  kind: "amm"
  amm_config_path: "amm.json"
`

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t, minimalValidConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Strategy.SyncInterval.Seconds() != 30 {
		t.Errorf("SyncInterval default = %v, want 30s", cfg.Strategy.SyncInterval)
	}
	if cfg.Strategy.RefreshFrequency.Seconds() != 5 {
		t.Errorf("RefreshFrequency default = %v, want 5s", cfg.Strategy.RefreshFrequency)
	}
	if cfg.Strategy.MinSize != 15 {
		t.Errorf("MinSize default = %v, want 15", cfg.Strategy.MinSize)
	}
	if cfg.Strategy.MinTick != 0.01 {
		t.Errorf("MinTick default = %v, want 0.01", cfg.Strategy.MinTick)
	}
	if cfg.Gas.Strategy != "web3" {
		t.Errorf("Gas.Strategy default = %q, want web3", cfg.Gas.Strategy)
	}
	if cfg.Metrics.Port != 9008 {
		t.Errorf("Metrics.Port default = %d, want 9008", cfg.Metrics.Port)
	}
}

func TestLoadEnvOverridesPrivateKey(t *testing.T) {
	path := writeTestConfig(t, minimalValidConfig)
	t.Setenv("POLY_PRIVATE_KEY", "0xoverridden")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wallet.PrivateKey != "0xoverridden" {
		t.Errorf("Wallet.PrivateKey = %q, want env override", cfg.Wallet.PrivateKey)
	}
}

func TestLoadEnvOverridesDryRun(t *testing.T) {
	path := writeTestConfig(t, minimalValidConfig)
	t.Setenv("POLY_DRY_RUN", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DryRun {
		t.Error("expected DryRun=true from POLY_DRY_RUN=true")
	}
}

func TestValidateRequiresPrivateKey(t *testing.T) {
	t.Parallel()
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject a config with no private key")
	}
}

func TestValidateFullyPopulatedConfig(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Wallet: WalletConfig{
			PrivateKey: "0xabc",
			ChainID:    137,
			RPCURL:     "https://rpc.example",
		},
		API: APIConfig{CLOBBaseURL: "https://clob.example"},
		Market: MarketConfig{
			ConditionID:       "0xcond",
			CollateralAddress: "0xcollateral",
		},
		Strategy: StrategyConfig{Kind: "amm", AMMConfigPath: "amm.json"},
		Gas:      GasConfig{Strategy: "web3"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate on fully populated config: %v", err)
	}
}

func TestValidateRequiresFunderAddressForProxySignature(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Wallet: WalletConfig{
			PrivateKey:    "0xabc",
			ChainID:       137,
			RPCURL:        "https://rpc.example",
			SignatureType: 1,
		},
		API:      APIConfig{CLOBBaseURL: "https://clob.example"},
		Market:   MarketConfig{ConditionID: "0xcond", CollateralAddress: "0xcollateral"},
		Strategy: StrategyConfig{Kind: "amm", AMMConfigPath: "amm.json"},
		Gas:      GasConfig{Strategy: "web3"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should require funder_address when signature_type is 1 (proxy)")
	}
}

func TestValidateRejectsUnknownStrategyKind(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Wallet:   WalletConfig{PrivateKey: "0xabc", ChainID: 137, RPCURL: "https://rpc.example"},
		API:      APIConfig{CLOBBaseURL: "https://clob.example"},
		Market:   MarketConfig{ConditionID: "0xcond", CollateralAddress: "0xcollateral"},
		Strategy: StrategyConfig{Kind: "bogus"},
		Gas:      GasConfig{Strategy: "web3"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject an unknown strategy kind")
	}
}

func TestValidateRequiresStationURLForStationGasStrategy(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Wallet:   WalletConfig{PrivateKey: "0xabc", ChainID: 137, RPCURL: "https://rpc.example"},
		API:      APIConfig{CLOBBaseURL: "https://clob.example"},
		Market:   MarketConfig{ConditionID: "0xcond", CollateralAddress: "0xcollateral"},
		Strategy: StrategyConfig{Kind: "amm", AMMConfigPath: "amm.json"},
		Gas:      GasConfig{Strategy: "station"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should require gas.station_url when gas.strategy is station")
	}
}
