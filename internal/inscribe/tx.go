package inscribe

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"github.com/kasmarket/prophet-engine/internal/chain"
	"github.com/kasmarket/prophet-engine/internal/model"
)

const defaultSigHashType = txscript.SigHashAll

// BuildCommitTx spends fundingUTXOs to a single output locking commitSompi
// to the P2SH address derived from redeemScript, returning change (if any)
// to changeScriptPubKey. It does not sign; callers sign its inputs with
// SignCommitInputs before submitting.
func BuildCommitTx(fundingUTXOs []chain.UTXO, commitSompi int64, redeemScript []byte, changeScriptPubKey []byte, params *chain.Params) (*chain.Transaction, error) {
	commitScriptPubKey, err := BuildP2SHScriptPubKey(redeemScript)
	if err != nil {
		return nil, model.Wrap(model.TokenOpFailed, "build commit scriptPubKey", err)
	}

	var total int64
	inputs := make([]chain.TxInput, 0, len(fundingUTXOs))
	for _, u := range fundingUTXOs {
		inputs = append(inputs, chain.TxInput{PrevTxID: u.TxID, PrevVout: u.Vout})
		total += u.AmountSompi
	}

	outputs := []chain.TxOutput{
		{AmountSompi: commitSompi, ScriptPubKey: hex.EncodeToString(commitScriptPubKey)},
	}
	change := total - commitSompi - massFeeBufferSompi
	if change > 0 {
		outputs = append(outputs, chain.TxOutput{AmountSompi: change, ScriptPubKey: hex.EncodeToString(changeScriptPubKey)})
	}

	return &chain.Transaction{Version: 0, Inputs: inputs, Outputs: outputs}, nil
}

// BuildRevealTx spends the single commit UTXO to one output carrying
// revealSompi, paid to destinationScriptPubKey. Per the protocol's burn
// invariant, the input amount minus the reveal amount minus the mass fee
// buffer is never returned anywhere: there is no change output. Callers
// must verify commitAmountSompi - revealSompi - massFeeBufferSompi >= 0
// before broadcasting (BuildRevealTx itself refuses to build an
// underfunded reveal).
func BuildRevealTx(commitTxID string, commitVout uint32, commitAmountSompi int64, revealSompi int64, destinationScriptPubKey []byte) (*chain.Transaction, error) {
	if commitAmountSompi < revealSompi+massFeeBufferSompi {
		return nil, model.New(model.TokenOpFailed, "commit output too small to cover reveal amount and fee buffer")
	}

	return &chain.Transaction{
		Version: 0,
		Inputs: []chain.TxInput{
			{PrevTxID: commitTxID, PrevVout: commitVout},
		},
		Outputs: []chain.TxOutput{
			{AmountSompi: revealSompi, ScriptPubKey: hex.EncodeToString(destinationScriptPubKey)},
		},
	}, nil
}

// sigHash computes the legacy P2SH-style signature hash for inputIndex:
// the transaction with every input's signature script blanked except
// inputIndex, which is set to subscript, serialized and double-hashed.
// This mirrors the shape of txscript.CalcSignatureHash, adapted to this
// package's own Transaction wire type since Kaspa transactions are not
// wire.MsgTx.
func sigHash(tx *chain.Transaction, inputIndex int, subscript []byte, hashType txscript.SigHashType) ([]byte, error) {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return nil, model.New(model.TokenOpFailed, "sigHash: input index out of range")
	}

	blanked := *tx
	blanked.Inputs = make([]chain.TxInput, len(tx.Inputs))
	copy(blanked.Inputs, tx.Inputs)
	for i := range blanked.Inputs {
		if i == inputIndex {
			blanked.Inputs[i].SignatureHex = hex.EncodeToString(subscript)
		} else {
			blanked.Inputs[i].SignatureHex = ""
		}
	}

	buf, err := serializeForSigning(&blanked, hashType)
	if err != nil {
		return nil, err
	}
	h := chainhash.DoubleHashB(buf)
	return h, nil
}

// serializeForSigning produces the deterministic byte sequence hashed for
// signing: a length-prefixed concatenation of every field, with the
// sighash type appended, so that the same (tx, inputIndex, subscript)
// always yields the same digest.
func serializeForSigning(tx *chain.Transaction, hashType txscript.SigHashType) ([]byte, error) {
	var buf []byte
	appendUint64 := func(v uint64) {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		buf = append(buf, b[:]...)
	}

	appendUint64(uint64(tx.Version))
	appendUint64(uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, []byte(in.PrevTxID)...)
		appendUint64(uint64(in.PrevVout))
		sig, err := hex.DecodeString(in.SignatureHex)
		if err != nil {
			return nil, model.Wrap(model.TokenOpFailed, "decode signature script for signing", err)
		}
		buf = append(buf, sig...)
		appendUint64(in.SequenceNumber)
	}
	appendUint64(uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		appendUint64(uint64(out.AmountSompi))
		spk, err := hex.DecodeString(out.ScriptPubKey)
		if err != nil {
			return nil, model.Wrap(model.TokenOpFailed, "decode output script for signing", err)
		}
		buf = append(buf, spk...)
	}
	appendUint64(tx.LockTime)
	buf = append(buf, byte(hashType))
	return buf, nil
}

// SignRevealInput signs the reveal transaction's sole input (which spends
// the P2SH commit output) with privKey over redeemScript, and installs the
// resulting "<sig+sighash_byte> <push_redeem_script>" signature script.
func SignRevealInput(tx *chain.Transaction, privKey *btcec.PrivateKey, redeemScript []byte) error {
	const revealInputIndex = 0

	digest, err := sigHash(tx, revealInputIndex, redeemScript, defaultSigHashType)
	if err != nil {
		return err
	}

	sig, err := schnorr.Sign(privKey, digest)
	if err != nil {
		return model.Wrap(model.TokenOpFailed, "sign reveal input", err)
	}

	sigScript, err := BuildRevealSignatureScript(sig, defaultSigHashType, redeemScript)
	if err != nil {
		return model.Wrap(model.TokenOpFailed, "build reveal signature script", err)
	}

	tx.Inputs[revealInputIndex].SignatureHex = hex.EncodeToString(sigScript)
	return nil
}

// SignCommitInputs signs every commit-transaction input as an ordinary
// P2PKH-style spend: a push of the Schnorr signature followed by a push
// of the x-only public key, each referencing the matching prevScriptPubKey.
func SignCommitInputs(tx *chain.Transaction, privKey *btcec.PrivateKey, prevScriptPubKeys [][]byte) error {
	if len(prevScriptPubKeys) != len(tx.Inputs) {
		return model.New(model.TokenOpFailed, "SignCommitInputs: scriptPubKey count mismatch")
	}

	xOnlyPub := schnorr.SerializePubKey(privKey.PubKey())

	for i := range tx.Inputs {
		digest, err := sigHash(tx, i, prevScriptPubKeys[i], defaultSigHashType)
		if err != nil {
			return err
		}
		sig, err := schnorr.Sign(privKey, digest)
		if err != nil {
			return model.Wrap(model.TokenOpFailed, "sign commit input", err)
		}
		sigBytes := append(sig.Serialize(), byte(defaultSigHashType))

		builder := txscript.NewScriptBuilder()
		builder.AddData(sigBytes)
		builder.AddData(xOnlyPub)
		script, err := builder.Script()
		if err != nil {
			return model.Wrap(model.TokenOpFailed, "build commit signature script", err)
		}
		tx.Inputs[i].SignatureHex = hex.EncodeToString(script)
	}
	return nil
}
