// Package trading implements the quote/buy/sell engine: pricing a trade
// against a market's LMSR state, then executing it atomically against the
// store with a slippage guard and token-service mint/burn side effects.
package trading

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/kasmarket/prophet-engine/internal/lmsr"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/internal/token"
)

const minTradeCash = 0.01

// DefaultMaxSlippage is the |price_impact| ceiling applied when a caller
// passes 0 for maxSlippage.
const DefaultMaxSlippage = 0.10

// Engine prices and executes trades against one store and token service.
type Engine struct {
	store  *store.Store
	tokens token.Service
}

// New builds a trading Engine.
func New(s *store.Store, tokens token.Service) *Engine {
	return &Engine{store: s, tokens: tokens}
}

func lmsrSide(side model.Side) lmsr.Side {
	if side == model.SideYes {
		return lmsr.Yes
	}
	return lmsr.No
}

// quoteErr maps the math kernel's sentinel errors onto the surface error
// kinds; anything else passes through unchanged.
func quoteErr(err error) error {
	switch {
	case errors.Is(err, lmsr.ErrInvalidLiquidity):
		return model.Wrap(model.InvalidLiquidity, "market liquidity parameter is invalid", err)
	case errors.Is(err, lmsr.ErrInsufficientShares):
		return model.Wrap(model.InsufficientShares, "sell exceeds outstanding shares", err)
	default:
		return err
	}
}

// Quote prices a prospective buy (cash-denominated) or sell
// (shares-denominated) without mutating anything.
func (e *Engine) Quote(marketID string, side model.Side, action model.TradeAction, amount float64) (lmsr.Quote, error) {
	var q lmsr.Quote
	var err error
	e.store.View(func(tx *store.Tx) {
		m, ok := tx.Market(marketID)
		if !ok {
			err = model.New(model.NotFound, "market not found: "+marketID)
			return
		}
		if m.Status != model.StatusOpen {
			err = model.New(model.MarketClosed, "market is not open: "+marketID)
			return
		}
		ls := lmsrSide(side)
		switch action {
		case model.ActionBuyYes, model.ActionBuyNo:
			q, err = lmsr.QuoteBuy(m.QYes, m.QNo, m.Liquidity, ls, amount, m.FeeBps)
		case model.ActionSellYes, model.ActionSellNo:
			q, err = lmsr.QuoteSell(m.QYes, m.QNo, m.Liquidity, ls, amount, m.FeeBps)
		}
		if err != nil {
			err = quoteErr(err)
		}
	})
	return q, err
}

// Buy executes a buy of `cash` KAS worth of `side` shares for wallet,
// rejecting the trade if the quote's |price_impact| exceeds maxSlippage
// (pass 0 to use the 10% default). If externalTxID is non-empty,
// the trade follows the non-custodial path: the caller's on-chain payment
// is treated as the collateral and the wallet's cash balance is never
// debited. The LMSR state update, trade record, position update, and mint
// are all applied inside one store transaction: if the mint fails, the
// whole transaction rolls back.
func (e *Engine) Buy(ctx context.Context, wallet, marketID string, side model.Side, cash, maxSlippage float64, externalTxID string) (*model.Trade, error) {
	if !model.ValidAddress(wallet) {
		return nil, model.New(model.InvalidAddress, "malformed wallet address: "+wallet)
	}
	if cash < minTradeCash {
		return nil, model.New(model.AmountTooSmall, "buy amount below minimum")
	}
	if maxSlippage <= 0 {
		maxSlippage = DefaultMaxSlippage
	}

	var trade *model.Trade
	err := e.store.Transact(func(tx *store.Tx) error {
		m, ok := tx.Market(marketID)
		if !ok {
			return model.New(model.NotFound, "market not found: "+marketID)
		}
		if m.Status != model.StatusOpen {
			return model.New(model.MarketClosed, "market is not open: "+marketID)
		}

		var bal *model.Balance
		if externalTxID == "" {
			bal = tx.Balance(wallet)
			if bal.Available < cash {
				return model.New(model.InsufficientBalance, "insufficient balance for buy")
			}
		}

		ls := lmsrSide(side)
		q, err := lmsr.QuoteBuy(m.QYes, m.QNo, m.Liquidity, ls, cash, m.FeeBps)
		if err != nil {
			return quoteErr(err)
		}
		if model.RoundShares(q.Shares) <= 0 {
			return model.New(model.AmountTooSmall, "quoted shares round to zero")
		}
		if math.Abs(q.PriceImpact) > maxSlippage {
			return model.New(model.SlippageExceeded, "price impact exceeds requested maximum")
		}

		shares := model.RoundShares(q.Shares)
		avgPrice := model.RoundPrice(q.AvgPrice)
		cashRounded := model.RoundCash(cash)

		ticker := m.YesTicker
		action := model.ActionBuyYes
		if side == model.SideNo {
			ticker = m.NoTicker
			action = model.ActionBuyNo
		}

		if bal != nil {
			bal.Available -= cashRounded
		}

		if side == model.SideYes {
			m.QYes += shares
		} else {
			m.QNo += shares
		}
		m.Volume += cashRounded
		m.TradeCount++

		tx.UpsertPosition(wallet, marketID, func(p *model.Position) {
			if side == model.SideYes {
				p.YesShares += shares
			} else {
				p.NoShares += shares
			}
			p.TotalCost += cashRounded
		})

		if err := e.tokens.Mint(ctx, tx, ticker, wallet, shares, store.NewID()); err != nil {
			return model.Wrap(model.MintFailed, "mint purchased shares", err)
		}

		pNew, perr := lmsr.PriceYes(m.QYes, m.QNo, m.Liquidity)
		if perr == nil {
			tx.AppendPricePoint(marketID, pNew)
		}

		trade = &model.Trade{
			ID:           store.NewID(),
			Wallet:       wallet,
			MarketID:     marketID,
			Action:       action,
			Shares:       shares,
			Cash:         cashRounded,
			AvgPrice:     avgPrice,
			ExternalTxID: externalTxID,
			CreatedAt:    time.Now(),
		}
		tx.AppendTrade(trade)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// Sell executes a sell of `shares` of `side` for wallet, crediting the net
// payout to the wallet's balance, rejecting the trade if the quote's
// |price_impact| exceeds maxSlippage (pass 0 to use the 10% default). If
// the token service's Burn call fails (on-chain mode, e.g. the
// inscription pipeline times out), the trade is still recorded with
// TokenReturnPending set and the store change is committed: the shares have
// already left the wallet's position, and the platform's inventory is
// reconciled out of band rather than blocking the seller's cash.
func (e *Engine) Sell(ctx context.Context, wallet, marketID string, side model.Side, shares, maxSlippage float64) (*model.Trade, error) {
	if !model.ValidAddress(wallet) {
		return nil, model.New(model.InvalidAddress, "malformed wallet address: "+wallet)
	}
	if maxSlippage <= 0 {
		maxSlippage = DefaultMaxSlippage
	}

	var trade *model.Trade
	err := e.store.Transact(func(tx *store.Tx) error {
		m, ok := tx.Market(marketID)
		if !ok {
			return model.New(model.NotFound, "market not found: "+marketID)
		}
		if m.Status != model.StatusOpen {
			return model.New(model.MarketClosed, "market is not open: "+marketID)
		}

		pos, ok := tx.Position(wallet, marketID)
		if !ok {
			return model.New(model.InsufficientShares, "no position in market")
		}
		held := pos.YesShares
		if side == model.SideNo {
			held = pos.NoShares
		}
		if shares > held {
			return model.New(model.InsufficientShares, "sell amount exceeds held shares")
		}

		ls := lmsrSide(side)
		q, err := lmsr.QuoteSell(m.QYes, m.QNo, m.Liquidity, ls, shares, m.FeeBps)
		if err != nil {
			return quoteErr(err)
		}
		if model.RoundCash(q.Cash) <= 0 {
			return model.New(model.AmountTooSmall, "quoted payout rounds to zero")
		}
		if math.Abs(q.PriceImpact) > maxSlippage {
			return model.New(model.SlippageExceeded, "price impact exceeds requested maximum")
		}

		netCash := model.RoundCash(q.Cash)
		sharesRounded := model.RoundShares(shares)
		avgPrice := model.RoundPrice(q.AvgPrice)

		ticker := m.YesTicker
		action := model.ActionSellYes
		if side == model.SideNo {
			ticker = m.NoTicker
			action = model.ActionSellNo
		}

		if side == model.SideYes {
			m.QYes -= sharesRounded
		} else {
			m.QNo -= sharesRounded
		}
		m.Volume += netCash
		m.TradeCount++

		tx.UpsertPosition(wallet, marketID, func(p *model.Position) {
			if side == model.SideYes {
				p.YesShares -= sharesRounded
			} else {
				p.NoShares -= sharesRounded
			}
			p.TotalCost -= netCash
		})

		bal := tx.Balance(wallet)
		bal.Available += netCash

		tradeID := store.NewID()
		returnPending := false
		if err := e.tokens.Burn(ctx, tx, ticker, wallet, sharesRounded, tradeID); err != nil {
			returnPending = true
		}

		pNew, perr := lmsr.PriceYes(m.QYes, m.QNo, m.Liquidity)
		if perr == nil {
			tx.AppendPricePoint(marketID, pNew)
		}

		trade = &model.Trade{
			ID:                 tradeID,
			Wallet:             wallet,
			MarketID:           marketID,
			Action:             action,
			Shares:             sharesRounded,
			Cash:               netCash,
			AvgPrice:           avgPrice,
			TokenReturnPending: returnPending,
			CreatedAt:          time.Now(),
		}
		tx.AppendTrade(trade)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}
