// Package main provides prophetd, the prediction-market engine process.
package main

import (
	"context"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/chain"
	"github.com/kasmarket/prophet-engine/internal/config"
	"github.com/kasmarket/prophet-engine/internal/indexer"
	"github.com/kasmarket/prophet-engine/internal/inscribe"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/oracle"
	"github.com/kasmarket/prophet-engine/internal/resolver"
	"github.com/kasmarket/prophet-engine/internal/seed"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/internal/token"
	"github.com/kasmarket/prophet-engine/internal/trading"
	"github.com/kasmarket/prophet-engine/pkg/logging"
)

var version = "0.1.0-dev"

func main() {
	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	log = logging.New(&logging.Config{Level: cfg.LogLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}

	log.Infof("prophetd %s starting (mode=%s)", version, modeLabel(cfg.UseRealKRC20))

	st, err := store.New(&store.Config{DataDir: cfg.DataDir})
	if err != nil {
		log.Fatal("failed to initialize store", "error", err)
	}
	log.Info("store initialized", "path", cfg.DataDir)

	auditLog, err := audit.New(&audit.Config{DataDir: cfg.DataDir})
	if err != nil {
		log.Fatal("failed to initialize audit log", "error", err)
	}
	defer auditLog.Close()
	log.Info("audit log initialized")

	oracleClient := oracle.New(cfg.OracleAPI)

	tokenService, err := buildTokenService(cfg, auditLog, log)
	if err != nil {
		log.Fatal("failed to initialize token service", "error", err)
	}

	if err := seedIfEmpty(st, tokenService, log); err != nil {
		log.Fatal("failed to seed markets", "error", err)
	}

	tradingEngine := trading.New(st, tokenService)
	_ = tradingEngine // wired into a future HTTP/RPC surface; exercised directly by tests today

	res := resolver.New(st, tokenService, oracleClient, cfg.SyncInterval)
	res.Start()
	defer res.Stop()

	log.Info("prophetd ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
}

// seedIfEmpty creates the default BTC threshold ladder on a fresh store;
// a store restored from disk keeps whatever it already holds.
func seedIfEmpty(st *store.Store, tokens token.Service, log *logging.Logger) error {
	var empty bool
	st.View(func(tx *store.Tx) {
		empty = tx.EventCount() == 0
	})
	if !empty {
		return nil
	}

	eventID, marketIDs, err := seed.Apply(context.Background(), st, tokens, seed.Ladder{
		Title:      "BTC price targets",
		Asset:      "BTC",
		Deadline:   time.Now().Add(90 * 24 * time.Hour),
		Direction:  model.GTE,
		Thresholds: []float64{150000, 140000, 130000, 120000, 110000, 100000, 90000, 80000},
		Liquidity:  200,
		FeeBps:     100,
	})
	if err != nil {
		return err
	}
	log.Info("seeded default ladder", "event", eventID, "markets", len(marketIDs))
	return nil
}

func modeLabel(onChain bool) string {
	if onChain {
		return "on-chain"
	}
	return "local"
}

// buildTokenService selects the token service implementation once at
// startup, per config, never switching at runtime.
func buildTokenService(cfg *config.Config, auditLog *audit.Log, log *logging.Logger) (token.Service, error) {
	if !cfg.UseRealKRC20 {
		return token.NewLocal(auditLog), nil
	}

	keyBytes, err := hex.DecodeString(cfg.PlatformPrivKeyHex)
	if err != nil {
		return nil, err
	}
	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)

	params, err := chain.Get(chain.Network(cfg.KaspaNetwork))
	if err != nil {
		return nil, err
	}

	rpcClient := chain.NewRPCClient(cfg.KaspaRPCURL)
	pipelineLock := inscribe.NewPipelineLock()

	xOnlyPub := schnorr.SerializePubKey(privKey.PubKey())
	platformSPK, err := inscribe.BuildP2PKScriptPubKey(xOnlyPub)
	if err != nil {
		return nil, err
	}
	rawAddr, err := inscribe.PubKeyAddress(xOnlyPub, params)
	if err != nil {
		return nil, err
	}
	platformAddr := inscribe.FormatAddress(rawAddr, params)

	pipeline := inscribe.NewPipeline(rpcClient, params, pipelineLock, privKey, platformAddr, platformSPK, log)

	idx := indexer.New(cfg.KasplexIndexerAPI)

	return token.NewOnChain(auditLog, pipeline, idx, platformAddr), nil
}
