package token

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/chain"
	"github.com/kasmarket/prophet-engine/internal/indexer"
	"github.com/kasmarket/prophet-engine/internal/inscribe"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(&store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return s
}

func newTestAudit(t *testing.T) *audit.Log {
	t.Helper()
	a, err := audit.New(&audit.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("audit.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func seedEventAndMarket() (*model.Event, *model.Market) {
	event := &model.Event{ID: "ev1", Asset: "BTC", DeadlineMs: 2000000000000}
	market := &model.Market{
		ID: "m1", EventID: "ev1", Threshold: 100000, Direction: model.GTE,
		Status: model.StatusOpen, Liquidity: 200, FeeBps: 100,
	}
	return event, market
}

func TestLocalDeployMintBurnRedeem(t *testing.T) {
	s := newTestStore(t)
	svc := NewLocal(newTestAudit(t))

	var yesTicker string
	err := s.Transact(func(tx *store.Tx) error {
		event, market := seedEventAndMarket()
		tx.PutEvent(event)
		tx.PutMarket(market)
		if err := svc.DeployMarketTokens(context.Background(), tx, event, market); err != nil {
			return err
		}
		yesTicker = market.YesTicker
		return nil
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if yesTicker == "" {
		t.Fatal("expected a yes ticker to be assigned")
	}

	err = s.Transact(func(tx *store.Tx) error {
		if err := svc.Mint(context.Background(), tx, yesTicker, "kaspa:wallet1", 10, "trade1"); err != nil {
			return err
		}
		tok, _ := tx.Token(yesTicker)
		if tok.TotalSupply != 10 {
			return fmt.Errorf("expected total supply 10, got %v", tok.TotalSupply)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	err = s.Transact(func(tx *store.Tx) error {
		if err := svc.Burn(context.Background(), tx, yesTicker, "kaspa:wallet1", 4, "trade2"); err != nil {
			return err
		}
		tok, _ := tx.Token(yesTicker)
		if tok.PlatformInventory != 4 {
			return fmt.Errorf("expected platform inventory 4, got %v", tok.PlatformInventory)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("burn: %v", err)
	}

	err = s.Transact(func(tx *store.Tx) error {
		payout, err := svc.Redeem(context.Background(), tx, yesTicker, "kaspa:wallet1", 6, "resolve1")
		if err != nil {
			return err
		}
		if payout != 6 {
			return fmt.Errorf("expected payout 6, got %v", payout)
		}
		tok, _ := tx.Token(yesTicker)
		if tok.TotalSupply != 4 {
			return fmt.Errorf("expected remaining supply 4, got %v", tok.TotalSupply)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
}

func TestLocalMintUnknownTickerFails(t *testing.T) {
	s := newTestStore(t)
	svc := NewLocal(newTestAudit(t))
	err := s.Transact(func(tx *store.Tx) error {
		return svc.Mint(context.Background(), tx, "NOPE", "kaspa:wallet1", 1, "trade1")
	})
	if model.KindOf(err) != model.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

// fakeRPC implements chain.RPCClient with an in-memory funding UTXO and a
// commit output that mirrors whatever the last submitted transaction paid,
// enough to drive Pipeline.Run end to end without a real node.
type fakeRPC struct {
	fundingAddr     string
	fundingUTXO     chain.UTXO
	submitted       int
	lastTxID        string
	lastOutputSompi int64
}

func (f *fakeRPC) SubmitTransaction(_ context.Context, tx *chain.Transaction) (string, error) {
	f.submitted++
	f.lastTxID = fmt.Sprintf("tx%d", f.submitted)
	if len(tx.Outputs) > 0 {
		f.lastOutputSompi = tx.Outputs[0].AmountSompi
	}
	return f.lastTxID, nil
}

func (f *fakeRPC) GetUTXOsByAddress(_ context.Context, address string) ([]chain.UTXO, error) {
	if address == f.fundingAddr {
		return []chain.UTXO{f.fundingUTXO}, nil
	}
	return []chain.UTXO{{TxID: f.lastTxID, Vout: 0, Address: address, AmountSompi: f.lastOutputSompi}}, nil
}

func (f *fakeRPC) GetVirtualDAAScore(_ context.Context) (uint64, error) {
	return 1, nil
}

func (f *fakeRPC) IsConfirmed(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func newTestOnChainService(t *testing.T) (*onChainService, *store.Store) {
	t.Helper()
	s := newTestStore(t)

	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	params, err := chain.Get(chain.Testnet10)
	if err != nil {
		t.Fatalf("chain.Get: %v", err)
	}

	fundingAddr := "kaspatest:funding"
	rpc := &fakeRPC{
		fundingAddr: fundingAddr,
		fundingUTXO: chain.UTXO{
			TxID: "fundtx", Vout: 0, Address: fundingAddr,
			AmountSompi: 200_000 * 100_000_000, // covers a deploy commit with room to spare
			ScriptHex:   "51",
		},
	}

	lock := inscribe.NewPipelineLock()
	pipeline := inscribe.NewPipeline(rpc, params, lock, privKey, fundingAddr, []byte{0x51}, nil)

	idxSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":"deployed","minted":"0"}`))
	}))
	t.Cleanup(idxSrv.Close)
	idx := indexer.New(idxSrv.URL)

	svc := NewOnChain(newTestAudit(t), pipeline, idx, fundingAddr).(*onChainService)
	return svc, s
}

// TestOnChainDeployPremintsInventory: a deploy must leave each token with
// its deploy txid recorded and the pre-minted batch sitting in platform
// inventory, ready for Mint to transfer out of.
func TestOnChainDeployPremintsInventory(t *testing.T) {
	svc, s := newTestOnChainService(t)

	var yesTicker string
	err := s.Transact(func(tx *store.Tx) error {
		event, market := seedEventAndMarket()
		tx.PutEvent(event)
		tx.PutMarket(market)
		if err := svc.DeployMarketTokens(context.Background(), tx, event, market); err != nil {
			return err
		}
		yesTicker = market.YesTicker
		return nil
	})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	s.View(func(tx *store.Tx) {
		tok, ok := tx.Token(yesTicker)
		if !ok {
			t.Fatal("token missing after deploy")
		}
		if tok.DeployTxID == "" {
			t.Error("expected deploy txid recorded")
		}
		if tok.PlatformInventory != deployMintBatch || tok.TotalSupply != deployMintBatch {
			t.Errorf("expected pre-minted batch %d in inventory/supply, got %v/%v",
				deployMintBatch, tok.PlatformInventory, tok.TotalSupply)
		}
	})
}

// TestOnChainMintTransfersFromInventory: minting to a buyer decrements the
// platform inventory rather than growing total supply.
func TestOnChainMintTransfersFromInventory(t *testing.T) {
	svc, s := newTestOnChainService(t)

	var yesTicker string
	err := s.Transact(func(tx *store.Tx) error {
		event, market := seedEventAndMarket()
		tx.PutEvent(event)
		tx.PutMarket(market)
		if err := svc.DeployMarketTokens(context.Background(), tx, event, market); err != nil {
			return err
		}
		yesTicker = market.YesTicker
		return svc.Mint(context.Background(), tx, yesTicker, "kaspa:buyer", 25, "trade1")
	})
	if err != nil {
		t.Fatalf("deploy+mint: %v", err)
	}

	s.View(func(tx *store.Tx) {
		tok, _ := tx.Token(yesTicker)
		if tok.PlatformInventory != deployMintBatch-25 {
			t.Errorf("expected inventory decremented by 25, got %v", tok.PlatformInventory)
		}
		if tok.TotalSupply != deployMintBatch {
			t.Errorf("expected total supply unchanged by transfer, got %v", tok.TotalSupply)
		}
	})
}
