// Package resolver periodically polls the price oracle and resolves any
// market whose condition has been met or whose deadline has passed,
// paying out winning positions and burning losing ones.
package resolver

import (
	"context"
	"time"

	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/oracle"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/internal/token"
	"github.com/kasmarket/prophet-engine/pkg/logging"
)

// Resolver drives market resolution on a fixed interval.
type Resolver struct {
	store    *store.Store
	tokens   token.Service
	oracle   *oracle.Client
	interval time.Duration
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Resolver polling oracleClient every interval.
func New(s *store.Store, tokens token.Service, oracleClient *oracle.Client, interval time.Duration) *Resolver {
	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		store:    s,
		tokens:   tokens,
		oracle:   oracleClient,
		interval: interval,
		log:      logging.GetDefault().Component("resolver"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the resolution loop in a background goroutine.
func (r *Resolver) Start() {
	go r.run()
	r.log.Info("resolver started", "interval", r.interval)
}

// Stop cancels the resolution loop.
func (r *Resolver) Stop() {
	r.cancel()
}

func (r *Resolver) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick fetches one oracle bundle, commits it to the store, then evaluates
// every open market against it: an early condition match resolves YES
// regardless of deadline, a market whose deadline has passed without a
// match resolves NO, and everything else stays OPEN. An oracle failure
// ends the tick before any state is touched; the next tick retries.
func (r *Resolver) tick() {
	bundle, err := r.oracle.Latest(r.ctx)
	if err != nil {
		r.log.Warn("oracle unavailable this tick", "error", err)
		return
	}

	state := &model.OracleState{
		TickID:    bundle.Bundle.TickID,
		TxID:      bundle.Latest.TxID,
		Hash:      bundle.Latest.Hash,
		Prices:    make(map[string]float64, len(bundle.Bundle.Index)),
		UpdatedAt: time.Now(),
	}
	for asset, idx := range bundle.Bundle.Index {
		state.Prices[asset] = idx.Price
		if idx.Status == oracle.StatusDegraded {
			if state.Degraded == nil {
				state.Degraded = make(map[string]bool)
			}
			state.Degraded[asset] = true
		}
	}

	var markets []*model.Market
	err = r.store.Transact(func(tx *store.Tx) error {
		tx.SetOracleState(state)
		markets = tx.OpenMarkets()
		return nil
	})
	if err != nil {
		r.log.Error("failed to commit oracle state", "error", err)
		return
	}

	now := time.Now().UnixMilli()
	for _, m := range markets {
		var ev *model.Event
		r.store.View(func(tx *store.Tx) {
			e, ok := tx.Event(m.EventID)
			if ok {
				ev = e
			}
		})
		if ev == nil {
			continue
		}

		price, degraded, ok := bundle.PriceFor(ev.Asset)
		if !ok {
			// No reading for this asset at all; even a passed deadline waits
			// for a tick that actually carries the asset's price.
			continue
		}
		if degraded {
			r.log.Warn("price reading degraded", "market", m.ID, "asset", ev.Asset, "price", price)
		}

		haveMatch := conditionMet(m.Direction, price, m.Threshold)
		deadlinePassed := now >= ev.DeadlineMs
		if !haveMatch && !deadlinePassed {
			continue
		}

		outcome := model.OutcomeNo
		if haveMatch {
			outcome = model.OutcomeYes
		}
		if err := r.resolveMarket(m.ID, outcome, price, bundle.Latest.TxID, bundle.Latest.Hash); err != nil {
			r.log.Error("market resolution failed, stopping tick", "market", m.ID, "error", err)
			return
		}
	}
}

// resolveMarket settles every position of one market atomically under the
// already-decided outcome; early-YES and deadline-NO both funnel through
// here so the payout loop is identical either way. A payout failure must
// stop the whole tick rather than let later markets resolve while this
// one is left inconsistent, so the error is returned to the caller
// instead of being swallowed here.
func (r *Resolver) resolveMarket(marketID string, outcome model.Outcome, resolvedPrice float64, resolvedTxID, resolvedHash string) error {
	return r.store.Transact(func(tx *store.Tx) error {
		m, ok := tx.Market(marketID)
		if !ok || m.Status != model.StatusOpen {
			return nil
		}

		now := time.Now()
		m.Status = model.StatusResolved
		m.Outcome = outcome
		m.ResolvedAt = &now
		m.ResolvedPrice = resolvedPrice
		m.ResolvedTxID = resolvedTxID
		m.ResolvedHash = resolvedHash

		winningTicker, losingTicker := m.NoTicker, m.YesTicker
		if outcome == model.OutcomeYes {
			winningTicker, losingTicker = m.YesTicker, m.NoTicker
		}

		for _, pos := range tx.PositionsForMarket(marketID) {
			winningShares, losingShares := pos.NoShares, pos.YesShares
			if outcome == model.OutcomeYes {
				winningShares, losingShares = pos.YesShares, pos.NoShares
			}

			if winningShares > 0 {
				payout, err := r.tokens.Redeem(r.ctx, tx, winningTicker, pos.Wallet, winningShares, resolvedTxID)
				if err != nil {
					return model.Wrap(model.TokenOpFailed, "redeem winning position", err)
				}
				bal := tx.Balance(pos.Wallet)
				bal.Available += payout
			}
			if losingShares > 0 {
				if err := r.tokens.BurnLosing(r.ctx, tx, losingTicker, pos.Wallet, losingShares, resolvedTxID); err != nil {
					return model.Wrap(model.TokenOpFailed, "burn losing position", err)
				}
			}

			tx.UpsertPosition(pos.Wallet, marketID, func(p *model.Position) {
				p.YesShares = 0
				p.NoShares = 0
			})
		}
		return nil
	})
}

func conditionMet(direction model.Direction, price, threshold float64) bool {
	if direction == model.GTE {
		return price >= threshold
	}
	return price <= threshold
}
