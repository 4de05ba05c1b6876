package config

import (
	"testing"
	"time"
)

func TestValidateRequiresOracleAPI(t *testing.T) {
	cfg := &Config{KaspaNetwork: "testnet-10"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when ORACLE_API is missing")
	}
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	cfg := &Config{KaspaNetwork: "devnet", OracleAPI: "http://oracle.example", SyncInterval: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unrecognized network")
	}
}

func TestValidateRequiresOnChainFieldsWhenEnabled(t *testing.T) {
	cfg := &Config{
		KaspaNetwork: "testnet-10",
		OracleAPI:    "http://oracle.example",
		SyncInterval: time.Second,
		UseRealKRC20: true,
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when on-chain mode is missing key/RPC/indexer settings")
	}
}

func TestValidateRejectsNonPositiveSyncInterval(t *testing.T) {
	cfg := &Config{KaspaNetwork: "testnet-10", OracleAPI: "http://oracle.example"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive sync interval")
	}
}

func TestValidatePassesLocalMode(t *testing.T) {
	cfg := &Config{KaspaNetwork: "testnet-10", OracleAPI: "http://oracle.example", SyncInterval: 5 * time.Second}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
