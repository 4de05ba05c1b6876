// Package inscribe implements the commit-reveal KRC-20 inscription
// pipeline: the redeem-script/envelope builder, P2SH address derivation,
// UTXO selection, transaction construction and Schnorr signing, and the
// global operation lock that serializes commits and reveals.
package inscribe

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"

	"github.com/kasmarket/prophet-engine/internal/chain"
)

// BuildRedeemScript constructs the redeem script an inscription's P2SH
// commit output locks to: a push of the 32-byte x-only public key, a
// CHECKSIG, and an OP_FALSE OP_IF ... OP_ENDIF envelope wrapping the
// minified JSON payload. The envelope is never executed (OP_FALSE makes
// the OP_IF branch dead code); it exists purely to carry the payload bytes
// on-chain alongside a spendable CHECKSIG.
func BuildRedeemScript(xOnlyPubKey []byte, payload []byte) ([]byte, error) {
	if len(xOnlyPubKey) != 32 {
		return nil, fmt.Errorf("inscribe: x-only pubkey must be 32 bytes, got %d", len(xOnlyPubKey))
	}

	builder := txscript.NewScriptBuilder()
	builder.AddData(xOnlyPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_FALSE)
	builder.AddOp(txscript.OP_IF)
	builder.AddFullData(payload)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// ScriptHash returns the SHA-256 hash of a redeem script, the value a P2SH
// address and output commit to.
func ScriptHash(redeemScript []byte) [32]byte {
	return sha256.Sum256(redeemScript)
}

// P2SHAddress derives the commit address for a redeem script on network:
// a 32-byte script hash prefixed by the network's script-address version
// byte. Full bech32m encoding per the target network's address format is
// left to the wallet layer; callers needing a display string use
// FormatAddress.
func P2SHAddress(redeemScript []byte, params *chain.Params) []byte {
	hash := ScriptHash(redeemScript)
	addr := make([]byte, 0, 33)
	addr = append(addr, params.ScriptAddrID)
	addr = append(addr, hash[:]...)
	return addr
}

// FormatAddress renders a raw address (as produced by P2SHAddress) using
// the network's bech32-style human-readable prefix.
func FormatAddress(raw []byte, params *chain.Params) string {
	return fmt.Sprintf("%s:%x", params.Bech32Prefix, raw)
}

// BuildP2SHScriptPubKey builds the scriptPubKey for a commit output paying
// to a P2SH address: OP_SHA256 <scripthash> OP_EQUAL, the standard P2SH
// locking pattern adapted from hash160 to the 32-byte sha256 this protocol
// uses.
func BuildP2SHScriptPubKey(redeemScript []byte) ([]byte, error) {
	hash := ScriptHash(redeemScript)
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(hash[:])
	builder.AddOp(txscript.OP_EQUAL)
	return builder.Script()
}

// BuildRevealSignatureScript encodes the reveal input's signature script:
// the 64-byte Schnorr signature plus sighash-type byte, followed by a push
// of the full redeem script, per the protocol's
// "<schnorr_signature_65B> <push_redeem_script>" construction.
func BuildRevealSignatureScript(sig *schnorr.Signature, sigHashType txscript.SigHashType, redeemScript []byte) ([]byte, error) {
	sigBytes := append(sig.Serialize(), byte(sigHashType))
	builder := txscript.NewScriptBuilder()
	builder.AddData(sigBytes)
	builder.AddData(redeemScript)
	return builder.Script()
}

// PubKeyAddress derives the platform's own pay-to-pubkey address from its
// x-only public key: the network's pubkey-address version byte followed by
// the 32-byte key itself. Kaspa wallets spend directly against a pushed
// pubkey plus CHECKSIG rather than a hash160-based P2PKH, so no hashing
// step is needed here the way P2SHAddress hashes a redeem script.
func PubKeyAddress(xOnlyPubKey []byte, params *chain.Params) ([]byte, error) {
	if len(xOnlyPubKey) != 32 {
		return nil, fmt.Errorf("inscribe: x-only pubkey must be 32 bytes, got %d", len(xOnlyPubKey))
	}
	addr := make([]byte, 0, 33)
	addr = append(addr, params.PubKeyAddrID)
	addr = append(addr, xOnlyPubKey...)
	return addr, nil
}

// BuildP2PKScriptPubKey builds the scriptPubKey locking an output to a
// pay-to-pubkey address: a push of the x-only pubkey followed by CHECKSIG.
func BuildP2PKScriptPubKey(xOnlyPubKey []byte) ([]byte, error) {
	if len(xOnlyPubKey) != 32 {
		return nil, fmt.Errorf("inscribe: x-only pubkey must be 32 bytes, got %d", len(xOnlyPubKey))
	}
	builder := txscript.NewScriptBuilder()
	builder.AddData(xOnlyPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}

// ParseEnvelopePayload extracts the JSON payload bytes from a redeem
// script built by BuildRedeemScript, by tokenizing past the pubkey push,
// CHECKSIG, OP_FALSE and OP_IF.
func ParseEnvelopePayload(redeemScript []byte) ([]byte, error) {
	tok := txscript.MakeScriptTokenizer(0, redeemScript)

	if !tok.Next() {
		return nil, fmt.Errorf("inscribe: expected pubkey push")
	}
	if len(tok.Data()) != 32 {
		return nil, fmt.Errorf("inscribe: expected 32-byte x-only pubkey push")
	}
	if !tok.Next() || tok.Opcode() != txscript.OP_CHECKSIG {
		return nil, fmt.Errorf("inscribe: expected OP_CHECKSIG")
	}
	if !tok.Next() || tok.Opcode() != txscript.OP_FALSE {
		return nil, fmt.Errorf("inscribe: expected OP_FALSE")
	}
	if !tok.Next() || tok.Opcode() != txscript.OP_IF {
		return nil, fmt.Errorf("inscribe: expected OP_IF")
	}
	if !tok.Next() {
		return nil, fmt.Errorf("inscribe: expected payload push")
	}
	payload := tok.Data()
	if !tok.Next() || tok.Opcode() != txscript.OP_ENDIF {
		return nil, fmt.Errorf("inscribe: expected OP_ENDIF")
	}
	return payload, nil
}
