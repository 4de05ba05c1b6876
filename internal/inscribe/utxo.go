package inscribe

import (
	"sort"

	"github.com/kasmarket/prophet-engine/internal/chain"
)

// massFeeBufferSompi approximates the storage-mass fee a reveal
// transaction must reserve. Hand-chosen, not an exact mass computation;
// an exact recomputation would need the node's mass rules.
const massFeeBufferSompi = 100_000

// SelectUTXOs chooses inputs covering targetSompi + the mass fee buffer,
// preferring a single UTXO whose amount is within 10x of the target
// (minimizing storage mass by avoiding unnecessary inputs), and otherwise
// accumulating smallest-first.
func SelectUTXOs(utxos []chain.UTXO, targetSompi int64) ([]chain.UTXO, int64, bool) {
	need := targetSompi + massFeeBufferSompi

	sorted := make([]chain.UTXO, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AmountSompi < sorted[j].AmountSompi })

	for _, u := range sorted {
		if u.AmountSompi >= need && u.AmountSompi <= need*10 {
			return []chain.UTXO{u}, u.AmountSompi, true
		}
	}

	var chosen []chain.UTXO
	var total int64
	for _, u := range sorted {
		chosen = append(chosen, u)
		total += u.AmountSompi
		if total >= need {
			return chosen, total, true
		}
	}
	return nil, 0, false
}
