package store

import (
	"testing"

	"github.com/kasmarket/prophet-engine/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestTransactCommitsAndPersists(t *testing.T) {
	s := newTestStore(t)

	err := s.Transact(func(tx *Tx) error {
		tx.PutMarket(&model.Market{ID: "m1", Status: model.StatusOpen})
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}

	s.View(func(tx *Tx) {
		if _, ok := tx.Market("m1"); !ok {
			t.Error("expected market m1 to exist after commit")
		}
	})
}

func TestTransactRollsBackOnError(t *testing.T) {
	s := newTestStore(t)

	s.Transact(func(tx *Tx) error {
		tx.PutMarket(&model.Market{ID: "m1", QYes: 0})
		return nil
	})

	var before, after *model.Market
	s.View(func(tx *Tx) {
		m, _ := tx.Market("m1")
		cp := *m
		before = &cp
	})

	injectedErr := model.New(model.MintFailed, "simulated mint failure")
	err := s.Transact(func(tx *Tx) error {
		m, _ := tx.Market("m1")
		m.QYes = 999
		tx.UpsertPosition("alice", "m1", func(p *model.Position) {
			p.YesShares += 10
		})
		tx.AppendTrade(&model.Trade{ID: "t1", MarketID: "m1"})
		return injectedErr
	})
	if err != injectedErr {
		t.Fatalf("expected injected error back, got %v", err)
	}

	s.View(func(tx *Tx) {
		m, _ := tx.Market("m1")
		after = m
		if _, ok := tx.Position("alice", "m1"); ok {
			t.Error("position should not exist after rollback")
		}
		if len(tx.Trades()) != 0 {
			t.Error("trade log should be empty after rollback")
		}
	})

	if after.QYes != before.QYes {
		t.Errorf("market state not rolled back: before=%v after=%v", before.QYes, after.QYes)
	}
}

func TestReloadsPersistedDocument(t *testing.T) {
	dir := t.TempDir()
	s1, err := New(&Config{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	s1.Transact(func(tx *Tx) error {
		tx.PutMarket(&model.Market{ID: "m1", Status: model.StatusOpen})
		return nil
	})

	s2, err := New(&Config{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	s2.View(func(tx *Tx) {
		if _, ok := tx.Market("m1"); !ok {
			t.Error("expected market to survive reload from disk")
		}
	})
}

func TestMissingFileIsEmptyStore(t *testing.T) {
	s := newTestStore(t)
	s.View(func(tx *Tx) {
		if len(tx.OpenMarkets()) != 0 {
			t.Error("expected empty store when no file is present")
		}
	})
}
