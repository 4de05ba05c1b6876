package chain

// UTXO is an explicit, typed record of one unspent output at an address.
// Amounts are sompi (integer base units), never floats.
type UTXO struct {
	TxID        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	Address     string `json:"address"`
	AmountSompi int64  `json:"amount_sompi"`
	ScriptHex   string `json:"script_pub_key"`
	DAAScore    uint64 `json:"daa_score"`
}

// TxInput references a previous output being spent and carries the
// signature script once signed.
type TxInput struct {
	PrevTxID       string `json:"prev_txid"`
	PrevVout       uint32 `json:"prev_vout"`
	SignatureHex   string `json:"signature_script"`
	SequenceNumber uint64 `json:"sequence"`
}

// TxOutput is one transaction output.
type TxOutput struct {
	AmountSompi  int64  `json:"amount_sompi"`
	ScriptPubKey string `json:"script_pub_key"`
}

// Transaction is the explicit wire record the pipeline builds, signs, and
// submits: the typed boundary object the RPC client serializes to/from
// whatever transport-level encoding the node expects.
type Transaction struct {
	Version  uint16     `json:"version"`
	Inputs   []TxInput  `json:"inputs"`
	Outputs  []TxOutput `json:"outputs"`
	LockTime uint64     `json:"lock_time"`
}

// TotalOut sums every output amount.
func (t *Transaction) TotalOut() int64 {
	var sum int64
	for _, o := range t.Outputs {
		sum += o.AmountSompi
	}
	return sum
}
