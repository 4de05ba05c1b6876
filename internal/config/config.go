// Package config loads the engine's configuration purely from environment
// variables via viper. This process has no on-disk config file, only the
// variables bound below; the environment is authoritative.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kasmarket/prophet-engine/internal/chain"
)

// Config is the engine's full runtime configuration.
type Config struct {
	UseRealKRC20       bool          `mapstructure:"use_real_krc20"`
	PlatformPrivKeyHex string        `mapstructure:"platform_private_key"`
	KaspaNetwork       string        `mapstructure:"kaspa_network"`
	KaspaRPCURL        string        `mapstructure:"kaspa_rpc_url"`
	KasplexIndexerAPI  string        `mapstructure:"kasplex_indexer_api"`
	SyncInterval       time.Duration `mapstructure:"pm_sync_interval"`
	OracleAPI          string        `mapstructure:"oracle_api"`
	DataDir            string        `mapstructure:"pm_data_dir"`
	LogLevel           string        `mapstructure:"log_level"`
}

// Load reads configuration from environment variables, applying the
// defaults set by the SetDefault calls below.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("use_real_krc20", false)
	v.SetDefault("kaspa_network", string(chain.Testnet10))
	v.SetDefault("kaspa_rpc_url", "")
	v.SetDefault("kasplex_indexer_api", "")
	v.SetDefault("pm_sync_interval", 5000)
	v.SetDefault("oracle_api", "")
	v.SetDefault("pm_data_dir", "./data")
	v.SetDefault("log_level", "info")

	bind := func(env string) {
		_ = v.BindEnv(env)
	}
	bind("use_real_krc20")
	bind("platform_private_key")
	bind("kaspa_network")
	bind("kaspa_rpc_url")
	bind("kasplex_indexer_api")
	bind("pm_sync_interval")
	bind("oracle_api")
	bind("pm_data_dir")
	bind("log_level")

	cfg := &Config{
		UseRealKRC20:       v.GetBool("use_real_krc20"),
		PlatformPrivKeyHex: v.GetString("platform_private_key"),
		KaspaNetwork:       v.GetString("kaspa_network"),
		KaspaRPCURL:        v.GetString("kaspa_rpc_url"),
		KasplexIndexerAPI:  v.GetString("kasplex_indexer_api"),
		// PM_SYNC_INTERVAL is a bare millisecond count, not a Go duration
		// string.
		SyncInterval:       time.Duration(v.GetInt64("pm_sync_interval")) * time.Millisecond,
		OracleAPI:          v.GetString("oracle_api"),
		DataDir:            v.GetString("pm_data_dir"),
		LogLevel:           v.GetString("log_level"),
	}
	return cfg, nil
}

// Validate checks that everything a given mode requires is present.
func (c *Config) Validate() error {
	if _, err := chain.ParseNetwork(c.KaspaNetwork); err != nil {
		return err
	}
	if c.OracleAPI == "" {
		return fmt.Errorf("config: ORACLE_API is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("config: PM_SYNC_INTERVAL must be positive")
	}
	if c.UseRealKRC20 {
		if c.PlatformPrivKeyHex == "" {
			return fmt.Errorf("config: PLATFORM_PRIVATE_KEY is required when USE_REAL_KRC20=true")
		}
		if c.KaspaRPCURL == "" {
			return fmt.Errorf("config: KASPA_RPC_URL is required when USE_REAL_KRC20=true")
		}
		if c.KasplexIndexerAPI == "" {
			return fmt.Errorf("config: KASPLEX_INDEXER_API is required when USE_REAL_KRC20=true")
		}
	}
	return nil
}
