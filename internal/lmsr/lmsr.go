// Package lmsr implements the logarithmic market scoring rule cost function
// used to price the binary YES/NO markets: numerically stable cost and
// price, and bisection-based inverse cost for sizing buy/sell quotes.
package lmsr

import (
	"errors"
	"math"
)

// ErrInvalidLiquidity is returned whenever the liquidity parameter b is not
// strictly positive.
var ErrInvalidLiquidity = errors.New("lmsr: liquidity parameter must be positive")

// ErrInsufficientShares is returned when a sell quote exceeds outstanding
// shares for that side.
var ErrInsufficientShares = errors.New("lmsr: insufficient outstanding shares")

const (
	priceEpsilon  = 1e-4
	bisectionTol  = 1e-4
	bisectionMax  = 1e12
	clampArgument = 20.0
)

// Cost evaluates the LMSR cost function C(q_yes, q_no) = b * LSE(q_yes/b, q_no/b)
// using the log-sum-exp identity LSE(x,y) = max(x,y) + ln(1 + exp(-|x-y|))
// so the exponentials never overflow regardless of how large q gets.
func Cost(qYes, qNo, b float64) (float64, error) {
	if b <= 0 {
		return 0, ErrInvalidLiquidity
	}
	x, y := qYes/b, qNo/b
	max := x
	if y > max {
		max = y
	}
	return b * (max + math.Log(1+math.Exp(-math.Abs(x-y)))), nil
}

// PriceYes returns the instantaneous YES probability/price, always within
// [epsilon, 1-epsilon]: once the logit argument exceeds 20 in magnitude the
// bound is returned outright, and otherwise the logistic value is clamped
// into that range, so deeply one-sided markets never report an exact 0 or 1.
func PriceYes(qYes, qNo, b float64) (float64, error) {
	if b <= 0 {
		return 0, ErrInvalidLiquidity
	}
	arg := (qNo - qYes) / b
	if arg > clampArgument {
		return priceEpsilon, nil
	}
	if arg < -clampArgument {
		return 1 - priceEpsilon, nil
	}
	p := 1 / (1 + math.Exp(arg))
	if p < priceEpsilon {
		p = priceEpsilon
	} else if p > 1-priceEpsilon {
		p = 1 - priceEpsilon
	}
	return p, nil
}

// PriceNo returns 1 - PriceYes.
func PriceNo(qYes, qNo, b float64) (float64, error) {
	p, err := PriceYes(qYes, qNo, b)
	if err != nil {
		return 0, err
	}
	return 1 - p, nil
}

// Side identifies which outcome a quantity delta applies to.
type Side int

const (
	Yes Side = iota
	No
)

// deltas returns the (dYes, dNo) share deltas a trade of `shares` on `side` applies.
func deltas(side Side, shares float64) (float64, float64) {
	if side == Yes {
		return shares, 0
	}
	return 0, shares
}

// CostToBuy returns C(q + delta) - C(q), the cash required to buy `shares`
// of `side` given current outstanding quantities.
func CostToBuy(qYes, qNo, b float64, side Side, shares float64) (float64, error) {
	before, err := Cost(qYes, qNo, b)
	if err != nil {
		return 0, err
	}
	dy, dn := deltas(side, shares)
	after, err := Cost(qYes+dy, qNo+dn, b)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

// PayoutForSell returns C(q) - C(q - delta), the cash returned by selling
// `shares` of `side`. Returns 0 (not an error) if shares exceeds outstanding
// for that side — callers are expected to check InsufficientShares via
// PayoutForSellChecked when outstanding supply must be enforced.
func PayoutForSell(qYes, qNo, b float64, side Side, shares float64) (float64, error) {
	outstanding := qYes
	if side == No {
		outstanding = qNo
	}
	if shares > outstanding {
		return 0, nil
	}
	before, err := Cost(qYes, qNo, b)
	if err != nil {
		return 0, err
	}
	dy, dn := deltas(side, shares)
	after, err := Cost(qYes-dy, qNo-dn, b)
	if err != nil {
		return 0, err
	}
	return before - after, nil
}

// PayoutForSellChecked is PayoutForSell but returns ErrInsufficientShares
// instead of silently paying out 0 when shares exceeds outstanding supply.
func PayoutForSellChecked(qYes, qNo, b float64, side Side, shares float64) (float64, error) {
	outstanding := qYes
	if side == No {
		outstanding = qNo
	}
	if shares > outstanding {
		return 0, ErrInsufficientShares
	}
	return PayoutForSell(qYes, qNo, b, side, shares)
}

// TokensForCash inverts CostToBuy by bisection: finds the share quantity
// whose buy-cost is approximately `cash`. The upper bound starts at 10*cash
// and doubles until the bracketed cost exceeds the target or a 1e12 safety
// ceiling is hit; bisection halts once the search interval narrows below
// 1e-4.
func TokensForCash(qYes, qNo, b float64, side Side, cash float64) (float64, error) {
	if b <= 0 {
		return 0, ErrInvalidLiquidity
	}
	if cash <= 0 {
		return 0, nil
	}

	low, high := 0.0, 10*cash
	if high <= 0 {
		high = 1
	}
	for {
		c, err := CostToBuy(qYes, qNo, b, side, high)
		if err != nil {
			return 0, err
		}
		if c >= cash || high >= bisectionMax {
			break
		}
		high *= 2
	}

	for high-low >= bisectionTol {
		mid := (low + high) / 2
		c, err := CostToBuy(qYes, qNo, b, side, mid)
		if err != nil {
			return 0, err
		}
		if c < cash {
			low = mid
		} else {
			high = mid
		}
	}
	return (low + high) / 2, nil
}

// SharesForPayout inverts PayoutForSell by the same bisection pattern,
// finding the share quantity whose sell-payout is approximately `cash`.
func SharesForPayout(qYes, qNo, b float64, side Side, cash float64) (float64, error) {
	if b <= 0 {
		return 0, ErrInvalidLiquidity
	}
	if cash <= 0 {
		return 0, nil
	}

	outstanding := qYes
	if side == No {
		outstanding = qNo
	}

	low, high := 0.0, outstanding
	if high <= 0 {
		return 0, ErrInsufficientShares
	}
	maxPayout, err := PayoutForSell(qYes, qNo, b, side, high)
	if err != nil {
		return 0, err
	}
	if maxPayout < cash {
		return 0, ErrInsufficientShares
	}

	for high-low >= bisectionTol {
		mid := (low + high) / 2
		p, err := PayoutForSell(qYes, qNo, b, side, mid)
		if err != nil {
			return 0, err
		}
		if p < cash {
			low = mid
		} else {
			high = mid
		}
	}
	return (low + high) / 2, nil
}

// Action distinguishes a buy quote from a sell quote.
type Action int

const (
	Buy Action = iota
	Sell
)

// Quote bundles the result of pricing a trade before it is committed to the store.
type Quote struct {
	Side        Side
	Action      Action
	Shares      float64
	Cash        float64
	AvgPrice    float64
	Fee         float64
	PriceBefore float64
	PriceAfter  float64
	PriceImpact float64
}

// QuoteBuy prices a buy of `cash` KAS (before fee) of `side`, applying
// feeBps to the cash leg before sizing shares.
func QuoteBuy(qYes, qNo, b float64, side Side, cash float64, feeBps int64) (Quote, error) {
	if b <= 0 {
		return Quote{}, ErrInvalidLiquidity
	}
	priceBefore, err := PriceYes(qYes, qNo, b)
	if err != nil {
		return Quote{}, err
	}
	if side == No {
		priceBefore = 1 - priceBefore
	}

	fee := cash * float64(feeBps) / 10000
	netCash := cash - fee

	shares, err := TokensForCash(qYes, qNo, b, side, netCash)
	if err != nil {
		return Quote{}, err
	}

	dy, dn := deltas(side, shares)
	priceAfter, err := PriceYes(qYes+dy, qNo+dn, b)
	if err != nil {
		return Quote{}, err
	}
	if side == No {
		priceAfter = 1 - priceAfter
	}

	avgPrice := 0.0
	if shares > 0 {
		avgPrice = netCash / shares
	}

	return Quote{
		Side:        side,
		Action:      Buy,
		Shares:      shares,
		Cash:        cash,
		AvgPrice:    avgPrice,
		Fee:         fee,
		PriceBefore: priceBefore,
		PriceAfter:  priceAfter,
		PriceImpact: priceImpact(priceBefore, priceAfter),
	}, nil
}

// QuoteSell prices a sell of `shares` of `side`, applying feeBps to the
// gross payout before it is returned to the seller.
func QuoteSell(qYes, qNo, b float64, side Side, shares float64, feeBps int64) (Quote, error) {
	if b <= 0 {
		return Quote{}, ErrInvalidLiquidity
	}
	priceBefore, err := PriceYes(qYes, qNo, b)
	if err != nil {
		return Quote{}, err
	}
	if side == No {
		priceBefore = 1 - priceBefore
	}

	gross, err := PayoutForSellChecked(qYes, qNo, b, side, shares)
	if err != nil {
		return Quote{}, err
	}

	fee := gross * float64(feeBps) / 10000
	netCash := gross - fee

	dy, dn := deltas(side, shares)
	priceAfter, err := PriceYes(qYes-dy, qNo-dn, b)
	if err != nil {
		return Quote{}, err
	}
	if side == No {
		priceAfter = 1 - priceAfter
	}

	avgPrice := 0.0
	if shares > 0 {
		avgPrice = netCash / shares
	}

	return Quote{
		Side:        side,
		Action:      Sell,
		Shares:      shares,
		Cash:        netCash,
		AvgPrice:    avgPrice,
		Fee:         fee,
		PriceBefore: priceBefore,
		PriceAfter:  priceAfter,
		PriceImpact: priceImpact(priceBefore, priceAfter),
	}, nil
}

func priceImpact(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before
}
