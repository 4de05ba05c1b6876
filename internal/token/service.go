// Package token implements the token service: ticker deployment and the
// mint/burn/redeem ledger operations the trading and resolution engines
// invoke, in either local (in-store counters) or on-chain (inscription
// pipeline) mode. The mode is a capability chosen once at process start,
// never switched at runtime, per the "dynamic import of optional native
// dependencies" redesign note.
package token

import (
	"context"
	"time"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
)

// Service is the capability interface the trading and resolution engines
// depend on; localService and onChainService are its two implementations.
type Service interface {
	// DeployMarketTokens allocates the YES/NO ticker pair for a market and
	// persists their metadata. In on-chain mode it also issues the two
	// deploy inscriptions.
	DeployMarketTokens(ctx context.Context, tx *store.Tx, event *model.Event, market *model.Market) error

	// Mint credits amount of ticker to recipient for tradeID.
	Mint(ctx context.Context, tx *store.Tx, ticker, recipient string, amount float64, tradeID string) error

	// Burn returns amount of ticker from holder to platform inventory.
	Burn(ctx context.Context, tx *store.Tx, ticker, holder string, amount float64, tradeID string) error

	// Redeem decrements total supply for a winning position and reports
	// the KAS amount the caller should credit (1:1 per share).
	Redeem(ctx context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) (float64, error)

	// BurnLosing decrements total supply for a losing position with no
	// credit.
	BurnLosing(ctx context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) error

	// BalanceOf returns a wallet's ticker balance, derived locally unless
	// the implementation chooses to consult an indexer.
	BalanceOf(tx *store.Tx, ticker, wallet string) float64
}

// baseService holds the pieces shared by both implementations: ticker
// allocation and audit logging. It is embedded, not exported.
type baseService struct {
	audit *audit.Log
}

func (b *baseService) recordEvent(kind model.EventKind, ticker, wallet string, amount float64, referenceID, txID string) {
	if b.audit == nil {
		return
	}
	b.audit.Append(model.AuditEvent{
		ID:          store.NewID(),
		Kind:        kind,
		Ticker:      ticker,
		Wallet:      wallet,
		Amount:      amount,
		ReferenceID: referenceID,
		TxID:        txID,
		Timestamp:   time.Now(),
	})
}

// positionBalance derives a wallet's ticker balance from its stored
// position, the default BalanceOf source for both modes.
func positionBalance(tx *store.Tx, ticker, wallet string) float64 {
	t, ok := tx.Token(ticker)
	if !ok {
		return 0
	}
	p, ok := tx.Position(wallet, t.MarketID)
	if !ok {
		return 0
	}
	if t.Side == model.SideYes {
		return p.YesShares
	}
	return p.NoShares
}

// allocateTokens builds the Token metadata pair for a freshly seeded
// market and writes them to the store; shared by both service modes.
func allocateTokens(tx *store.Tx, event *model.Event, market *model.Market, decimals uint8) (yes, no *model.Token) {
	deadline := time.UnixMilli(event.DeadlineMs)
	idx := tx.NextAssetIndex(event.Asset)
	yesTicker, noTicker := model.PairTickers(event.Asset, deadline, idx)

	yes = &model.Token{
		Ticker:            yesTicker,
		DisplayName:       model.DisplayName(event.Asset, market.Threshold, market.Direction, model.SideYes),
		MarketID:          market.ID,
		Side:              model.SideYes,
		Asset:             event.Asset,
		Threshold:         market.Threshold,
		MarketIndexLetter: string(yesTicker[len(yesTicker)-1]),
		Decimals:          decimals,
	}
	no = &model.Token{
		Ticker:            noTicker,
		DisplayName:       model.DisplayName(event.Asset, market.Threshold, market.Direction, model.SideNo),
		MarketID:          market.ID,
		Side:              model.SideNo,
		Asset:             event.Asset,
		Threshold:         market.Threshold,
		MarketIndexLetter: string(noTicker[len(noTicker)-1]),
		Decimals:          decimals,
	}
	tx.PutToken(yes)
	tx.PutToken(no)
	market.YesTicker = yesTicker
	market.NoTicker = noTicker
	return yes, no
}
