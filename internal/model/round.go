package model

import "github.com/shopspring/decimal"

// Reported precision policy: prices and shares carry 4 decimal places,
// cash carries 2. Rounding goes through fixed-precision decimals rather
// than float scaling so values like 2.675 land on the same side at every
// call site.

func roundPlaces(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundCash rounds a KAS cash amount to 2 decimal places.
func RoundCash(v float64) float64 { return roundPlaces(v, 2) }

// RoundShares rounds a share quantity to 4 decimal places.
func RoundShares(v float64) float64 { return roundPlaces(v, 4) }

// RoundPrice rounds a price/probability to 4 decimal places.
func RoundPrice(v float64) float64 { return roundPlaces(v, 4) }
