package seed

import (
	"context"
	"testing"
	"time"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/internal/token"
)

func newHarness(t *testing.T) (*store.Store, token.Service) {
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
	return s, token.NewLocal(auditLog)
}

func btcLadder() Ladder {
	return Ladder{
		Title:      "BTC price targets",
		Asset:      "BTC",
		Deadline:   time.Now().Add(30 * 24 * time.Hour),
		Direction:  model.GTE,
		Thresholds: []float64{150000, 140000, 130000, 120000, 110000, 100000, 90000, 80000},
		Liquidity:  200,
		FeeBps:     100,
	}
}

func TestApplyCreatesLadder(t *testing.T) {
	s, svc := newHarness(t)

	eventID, marketIDs, err := Apply(context.Background(), s, svc, btcLadder())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(marketIDs) != 8 {
		t.Fatalf("expected 8 markets, got %d", len(marketIDs))
	}

	s.View(func(tx *store.Tx) {
		if _, ok := tx.Event(eventID); !ok {
			t.Error("expected seeded event to exist")
		}
		for _, id := range marketIDs {
			m, ok := tx.Market(id)
			if !ok {
				t.Fatalf("market %s missing", id)
			}
			if m.Status != model.StatusOpen {
				t.Errorf("expected OPEN market, got %v", m.Status)
			}
			if !model.ValidTicker(m.YesTicker) || !model.ValidTicker(m.NoTicker) {
				t.Errorf("invalid tickers %q/%q", m.YesTicker, m.NoTicker)
			}
			if m.YesTicker[1:] != m.NoTicker[1:] {
				t.Errorf("ticker pair differs beyond first letter: %q vs %q", m.YesTicker, m.NoTicker)
			}
		}
	})
}

func TestApplyAllocatesDistinctTickersPerMarket(t *testing.T) {
	s, svc := newHarness(t)

	_, marketIDs, err := Apply(context.Background(), s, svc, btcLadder())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	seen := map[string]bool{}
	s.View(func(tx *store.Tx) {
		for _, id := range marketIDs {
			m, _ := tx.Market(id)
			for _, tick := range []string{m.YesTicker, m.NoTicker} {
				if seen[tick] {
					t.Errorf("ticker %q allocated twice", tick)
				}
				seen[tick] = true
			}
		}
	})
}

func TestApplyRejectsBadDirection(t *testing.T) {
	s, svc := newHarness(t)
	l := btcLadder()
	l.Direction = model.Direction("!=")
	if _, _, err := Apply(context.Background(), s, svc, l); model.KindOf(err) != model.InvalidDirection {
		t.Fatalf("expected InvalidDirection, got %v", err)
	}
}

func TestApplyRejectsNonPositiveLiquidity(t *testing.T) {
	s, svc := newHarness(t)
	l := btcLadder()
	l.Liquidity = 0
	if _, _, err := Apply(context.Background(), s, svc, l); model.KindOf(err) != model.InvalidLiquidity {
		t.Fatalf("expected InvalidLiquidity, got %v", err)
	}
}
