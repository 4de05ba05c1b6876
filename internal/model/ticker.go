package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TickerPattern is the canonical ticker format: a side letter, a 3-letter
// asset code, an optional month letter, and an index letter.
var TickerPattern = regexp.MustCompile(`^[YN][A-Z]{3}[A-Z]?[A-Z]$`)

var monthLetters = []byte("ABCDEFGHIJKL")

// monthLetter maps a calendar month (1-12) to its A-L letter.
func monthLetter(month time.Month) byte {
	idx := int(month) - 1
	if idx < 0 || idx > 11 {
		idx = 0
	}
	return monthLetters[idx]
}

// indexLetter maps a zero-based creation-order index to A-Z. Callers are
// expected to keep per-asset allocation below 26 tickers; beyond that the
// letter wraps.
func indexLetter(index int) byte {
	return byte('A' + (index % 26))
}

// PairTickers derives the YES/NO ticker pair for a market, given the
// event's asset symbol and deadline, and the zero-based creation-order
// index already allocated to this asset.
//
// Format: {Y|N}{ASSET3}{MONTH}{INDEX}, always 6 letters; assets longer
// than 3 letters are truncated/uppercased to exactly 3. This always stays
// within the 4-6 character ticker budget.
func PairTickers(asset string, deadline time.Time, assetIndex int) (yes, no string) {
	asset3 := strings.ToUpper(asset)
	if len(asset3) > 3 {
		asset3 = asset3[:3]
	}
	for len(asset3) < 3 {
		asset3 += "X"
	}

	month := monthLetter(deadline.Month())
	idx := indexLetter(assetIndex)

	yes = fmt.Sprintf("Y%s%c%c", asset3, month, idx)
	no = fmt.Sprintf("N%s%c%c", asset3, month, idx)
	return yes, no
}

// ValidTicker reports whether s matches the canonical ticker format.
func ValidTicker(s string) bool {
	return len(s) >= 4 && len(s) <= 6 && TickerPattern.MatchString(s)
}

// ValidAddress reports whether s looks like a bech32-style chain address:
// a human-readable prefix, a colon, and a non-empty payload.
func ValidAddress(s string) bool {
	i := strings.IndexByte(s, ':')
	return i > 0 && i < len(s)-1
}

// DisplayName builds a human-readable name for a token, e.g.
// "BTC >= 100000 YES".
func DisplayName(asset string, threshold float64, direction Direction, side Side) string {
	return fmt.Sprintf("%s %s %g %s", strings.ToUpper(asset), direction, threshold, side)
}
