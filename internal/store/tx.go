package store

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kasmarket/prophet-engine/internal/model"
)

// Tx is the only handle through which callers read or mutate a Store's
// entities; it is only valid for the duration of the Transact/View call
// that produced it.
type Tx struct {
	s *Store
}

// --- Events ---

func (tx *Tx) PutEvent(e *model.Event) {
	tx.s.doc.Events[e.ID] = e
}

func (tx *Tx) Event(id string) (*model.Event, bool) {
	e, ok := tx.s.doc.Events[id]
	return e, ok
}

func (tx *Tx) EventCount() int {
	return len(tx.s.doc.Events)
}

// --- Markets ---

func (tx *Tx) PutMarket(m *model.Market) {
	tx.s.doc.Markets[m.ID] = m
}

func (tx *Tx) Market(id string) (*model.Market, bool) {
	m, ok := tx.s.doc.Markets[id]
	return m, ok
}

// OpenMarkets returns every OPEN market, sorted by id so that resolution
// (internal/resolver) visits markets in a stable order across runs of the
// same store state rather than Go's randomized map iteration order.
func (tx *Tx) OpenMarkets() []*model.Market {
	var out []*model.Market
	for _, m := range tx.s.doc.Markets {
		if m.Status == model.StatusOpen {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- Trades ---

func (tx *Tx) AppendTrade(t *model.Trade) {
	tx.s.doc.Trades = append(tx.s.doc.Trades, t)
}

func (tx *Tx) Trades() []*model.Trade {
	return tx.s.doc.Trades
}

// --- Positions ---

func positionKey(wallet, marketID string) string { return wallet + "|" + marketID }

func (tx *Tx) Position(wallet, marketID string) (*model.Position, bool) {
	p, ok := tx.s.doc.Positions[positionKey(wallet, marketID)]
	return p, ok
}

func (tx *Tx) UpsertPosition(wallet, marketID string, mutate func(p *model.Position)) *model.Position {
	key := positionKey(wallet, marketID)
	p, ok := tx.s.doc.Positions[key]
	if !ok {
		p = &model.Position{Wallet: wallet, MarketID: marketID}
		tx.s.doc.Positions[key] = p
	}
	mutate(p)
	return p
}

// PositionsForMarket returns every position in marketID, sorted by wallet
// so resolution pays out in a stable order across runs of the same store
// state.
func (tx *Tx) PositionsForMarket(marketID string) []*model.Position {
	var out []*model.Position
	for _, p := range tx.s.doc.Positions {
		if p.MarketID == marketID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out
}

// --- Balances ---

func (tx *Tx) Balance(wallet string) *model.Balance {
	b, ok := tx.s.doc.Balances[wallet]
	if !ok {
		b = &model.Balance{Wallet: wallet}
		tx.s.doc.Balances[wallet] = b
	}
	return b
}

// --- Tokens ---

func (tx *Tx) PutToken(t *model.Token) {
	tx.s.doc.Tokens[t.Ticker] = t
}

func (tx *Tx) Token(ticker string) (*model.Token, bool) {
	t, ok := tx.s.doc.Tokens[ticker]
	return t, ok
}

// NextAssetIndex returns the next creation-order index for asset (0-based)
// and advances the counter; used to derive the ticker's index letter.
func (tx *Tx) NextAssetIndex(asset string) int {
	idx := tx.s.doc.AssetIndex[asset]
	tx.s.doc.AssetIndex[asset] = idx + 1
	return idx
}

// --- Price history ---

func (tx *Tx) AppendPricePoint(marketID string, probability float64) {
	hist := tx.s.doc.PriceHist[marketID]
	hist = append(hist, model.PricePoint{
		MarketID:    marketID,
		Timestamp:   time.Now(),
		Probability: probability,
	})
	if len(hist) > MaxPriceHistory {
		hist = hist[len(hist)-MaxPriceHistory:]
	}
	tx.s.doc.PriceHist[marketID] = hist
}

func (tx *Tx) PriceHistory(marketID string) []model.PricePoint {
	return tx.s.doc.PriceHist[marketID]
}

// --- Oracle state ---

// SetOracleState replaces the stored oracle reading; called by the
// resolver once per successful oracle fetch, before any market is
// evaluated against it.
func (tx *Tx) SetOracleState(st *model.OracleState) {
	tx.s.doc.Oracle = st
}

func (tx *Tx) OracleState() (*model.OracleState, bool) {
	if tx.s.doc.Oracle == nil {
		return nil, false
	}
	return tx.s.doc.Oracle, true
}

// NewID mints a fresh opaque entity id.
func NewID() string { return uuid.NewString() }
