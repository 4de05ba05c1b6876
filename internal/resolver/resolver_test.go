package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/oracle"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/internal/token"
)

// failingRedeemService wraps a real token.Service but forces Redeem to fail
// for one specific ticker, so a test can simulate a payout failure on one
// market mid-tick.
type failingRedeemService struct {
	token.Service
	failTicker string
}

func (f *failingRedeemService) Redeem(ctx context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) (float64, error) {
	if ticker == f.failTicker {
		return 0, errors.New("simulated redeem failure")
	}
	return f.Service.Redeem(ctx, tx, ticker, holder, amount, resolutionTxID)
}

func TestConditionMetGTE(t *testing.T) {
	if !conditionMet(model.GTE, 105, 100) {
		t.Error("expected GTE condition to be met")
	}
	if conditionMet(model.GTE, 95, 100) {
		t.Error("expected GTE condition to not be met")
	}
}

func TestConditionMetLTE(t *testing.T) {
	if !conditionMet(model.LTE, 95, 100) {
		t.Error("expected LTE condition to be met")
	}
	if conditionMet(model.LTE, 105, 100) {
		t.Error("expected LTE condition to not be met")
	}
}

// TestPriceForDegradedIndexIsStillUsable: a DEGRADED reading must still
// be returned with ok=true, just flagged, not discarded.
func TestPriceForDegradedIndexIsStillUsable(t *testing.T) {
	resp := &oracle.Response{
		Latest: oracle.Latest{Hash: "abc", UpdatedAt: time.Now().Unix()},
		Bundle: oracle.Bundle{
			TickID: "t1",
			Index: map[string]oracle.Index{
				"BTC": {Price: 100000, Status: oracle.StatusDegraded},
			},
		},
	}
	price, degraded, ok := resp.PriceFor("BTC")
	if !ok || price != 100000 || !degraded {
		t.Errorf("expected usable degraded price 100000, got %v ok=%v degraded=%v", price, ok, degraded)
	}
}

func TestPriceForOKIndex(t *testing.T) {
	resp := &oracle.Response{
		Bundle: oracle.Bundle{
			Index: map[string]oracle.Index{
				"BTC": {Price: 100000, Status: oracle.StatusOK},
			},
		},
	}
	price, degraded, ok := resp.PriceFor("BTC")
	if !ok || price != 100000 || degraded {
		t.Errorf("expected usable non-degraded price 100000, got %v ok=%v degraded=%v", price, ok, degraded)
	}
}

func oracleServer(t *testing.T, price float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"latest":{"h":"bundlehash","updated_at":1,"txid":"oracletx"},"bundle":{"tick_id":"t1","index":{"BTC":{"price":%v,"dispersion":0,"status":"OK"}}}}`, price)
	}))
}

func newResolverHarness(t *testing.T, deadlineMs int64, direction model.Direction) (*store.Store, token.Service) {
	t.Helper()
	s, err := store.New(&store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	auditLog, err := audit.New(&audit.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("audit.New: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })
	svc := token.NewLocal(auditLog)

	err = s.Transact(func(tx *store.Tx) error {
		event := &model.Event{ID: "ev1", Asset: "BTC", DeadlineMs: deadlineMs}
		tx.PutEvent(event)
		market := &model.Market{
			ID: "m1", EventID: "ev1", Threshold: 100000, Direction: direction,
			Status: model.StatusOpen, Liquidity: 200, FeeBps: 100,
		}
		tx.PutMarket(market)
		if err := svc.DeployMarketTokens(context.Background(), tx, event, market); err != nil {
			return err
		}
		tx.UpsertPosition("kaspa:yesholder", "m1", func(p *model.Position) { p.YesShares = 5 })
		tx.UpsertPosition("kaspa:noholder", "m1", func(p *model.Position) { p.NoShares = 7 })
		yes, _ := tx.Token(market.YesTicker)
		yes.TotalSupply = 5
		no, _ := tx.Token(market.NoTicker)
		no.TotalSupply = 7
		return nil
	})
	if err != nil {
		t.Fatalf("seed transact: %v", err)
	}
	return s, svc
}

// TestTickResolvesDeadlineNO: a market past its deadline whose oracle
// price never crossed the GTE threshold resolves NO, crediting the NO
// holder and burning the YES holder's shares.
func TestTickResolvesDeadlineNO(t *testing.T) {
	srv := oracleServer(t, 90000)
	defer srv.Close()

	s, svc := newResolverHarness(t, time.Now().Add(-time.Hour).UnixMilli(), model.GTE)
	r := New(s, svc, oracle.New(srv.URL), time.Hour)
	r.tick()

	s.View(func(tx *store.Tx) {
		m, _ := tx.Market("m1")
		if m.Status != model.StatusResolved || m.Outcome != model.OutcomeNo {
			t.Fatalf("expected RESOLVED/NO, got %v/%v", m.Status, m.Outcome)
		}
		if m.ResolvedTxID != "oracletx" || m.ResolvedHash != "bundlehash" {
			t.Errorf("expected oracle txid/hash carried onto market, got %q/%q", m.ResolvedTxID, m.ResolvedHash)
		}
		st, ok := tx.OracleState()
		if !ok || st.Prices["BTC"] != 90000 || st.TickID != "t1" {
			t.Errorf("expected oracle state committed to store, got %+v", st)
		}
		yesBal := tx.Balance("kaspa:yesholder")
		if yesBal.Available != 0 {
			t.Errorf("expected YES holder credited 0, got %v", yesBal.Available)
		}
		noBal := tx.Balance("kaspa:noholder")
		if noBal.Available != 7 {
			t.Errorf("expected NO holder credited 7, got %v", noBal.Available)
		}
	})
}

// TestTickResolvesEarlyYES: a market whose deadline has NOT passed still
// resolves YES the moment the oracle price crosses the threshold,
// exercising the early-resolution path the tick loop must not skip just
// because the deadline is in the future.
func TestTickResolvesEarlyYES(t *testing.T) {
	srv := oracleServer(t, 150000)
	defer srv.Close()

	s, svc := newResolverHarness(t, time.Now().Add(24*time.Hour).UnixMilli(), model.GTE)
	r := New(s, svc, oracle.New(srv.URL), time.Hour)
	r.tick()

	s.View(func(tx *store.Tx) {
		m, _ := tx.Market("m1")
		if m.Status != model.StatusResolved || m.Outcome != model.OutcomeYes {
			t.Fatalf("expected RESOLVED/YES before deadline, got %v/%v", m.Status, m.Outcome)
		}
		yesBal := tx.Balance("kaspa:yesholder")
		if yesBal.Available != 5 {
			t.Errorf("expected YES holder credited 5, got %v", yesBal.Available)
		}
		noBal := tx.Balance("kaspa:noholder")
		if noBal.Available != 0 {
			t.Errorf("expected NO holder credited 0, got %v", noBal.Available)
		}
	})
}

// TestTickSkipsMarketWithoutPriceReading: a market whose asset the oracle
// bundle does not carry stays OPEN even past its deadline — resolution
// waits for a tick that actually has the asset's price.
func TestTickSkipsMarketWithoutPriceReading(t *testing.T) {
	srv := oracleServer(t, 90000) // bundle carries BTC only
	defer srv.Close()

	s, svc := newResolverHarness(t, time.Now().Add(-time.Hour).UnixMilli(), model.GTE)
	err := s.Transact(func(tx *store.Tx) error {
		ev, _ := tx.Event("ev1")
		ev.Asset = "ETH"
		return nil
	})
	if err != nil {
		t.Fatalf("reassign asset: %v", err)
	}

	r := New(s, svc, oracle.New(srv.URL), time.Hour)
	r.tick()

	s.View(func(tx *store.Tx) {
		m, _ := tx.Market("m1")
		if m.Status != model.StatusOpen {
			t.Errorf("expected market without a price reading to stay OPEN, got %v", m.Status)
		}
	})
}

// TestTickOracleFailureLeavesStoreUntouched: a failed oracle fetch must end
// the tick before anything is written, including the stored oracle state.
func TestTickOracleFailureLeavesStoreUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, svc := newResolverHarness(t, time.Now().Add(-time.Hour).UnixMilli(), model.GTE)
	r := New(s, svc, oracle.New(srv.URL), time.Hour)
	r.tick()

	s.View(func(tx *store.Tx) {
		if _, ok := tx.OracleState(); ok {
			t.Error("expected no oracle state after failed fetch")
		}
		m, _ := tx.Market("m1")
		if m.Status != model.StatusOpen {
			t.Errorf("expected market untouched after failed fetch, got %v", m.Status)
		}
	})
}

// TestTickStopsOnPayoutFailureWithoutTouchingLaterMarkets covers "partial
// resolution is not permitted": a Redeem failure while paying out m1 must
// leave m1 rolled back to OPEN and must stop the tick before m2 (which
// sorts after m1 and would otherwise resolve cleanly) is ever touched.
func TestTickStopsOnPayoutFailureWithoutTouchingLaterMarkets(t *testing.T) {
	srv := oracleServer(t, 90000)
	defer srv.Close()

	s, err := store.New(&store.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	auditLog, err := audit.New(&audit.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("audit.New: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })
	localSvc := token.NewLocal(auditLog)

	pastDeadline := time.Now().Add(-time.Hour).UnixMilli()
	var m1NoTicker string
	err = s.Transact(func(tx *store.Tx) error {
		event := &model.Event{ID: "ev1", Asset: "BTC", DeadlineMs: pastDeadline}
		tx.PutEvent(event)

		for _, id := range []string{"m1", "m2"} {
			market := &model.Market{
				ID: id, EventID: "ev1", Threshold: 100000, Direction: model.GTE,
				Status: model.StatusOpen, Liquidity: 200, FeeBps: 100,
			}
			tx.PutMarket(market)
			if err := localSvc.DeployMarketTokens(context.Background(), tx, event, market); err != nil {
				return err
			}
			tx.UpsertPosition("kaspa:noholder", id, func(p *model.Position) { p.NoShares = 7 })
			no, _ := tx.Token(market.NoTicker)
			no.TotalSupply = 7
			if id == "m1" {
				m1NoTicker = market.NoTicker
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed transact: %v", err)
	}

	svc := &failingRedeemService{Service: localSvc, failTicker: m1NoTicker}
	r := New(s, svc, oracle.New(srv.URL), time.Hour)
	r.tick()

	s.View(func(tx *store.Tx) {
		m1, _ := tx.Market("m1")
		if m1.Status != model.StatusOpen {
			t.Errorf("expected m1 rolled back to OPEN after redeem failure, got %v", m1.Status)
		}
		pos1, ok := tx.Position("kaspa:noholder", "m1")
		if !ok || pos1.NoShares != 7 {
			t.Errorf("expected m1 position untouched at 7 NO shares, got %+v", pos1)
		}

		m2, _ := tx.Market("m2")
		if m2.Status != model.StatusOpen {
			t.Errorf("expected m2 left untouched (still OPEN) after tick stopped, got %v", m2.Status)
		}
		bal2 := tx.Balance("kaspa:noholder")
		if bal2.Available != 0 {
			t.Errorf("expected no payout credited since m2 was never resolved, got %v", bal2.Available)
		}
	})
}
