package inscribe

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/kasmarket/prophet-engine/internal/chain"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/pkg/logging"
)

const (
	confirmPollInterval = 2 * time.Second
	confirmPollAttempts = 30

	commitUTXOPollInterval = 1 * time.Second
	commitUTXOPollAttempts = 10
)

// Pipeline drives a single commit-reveal inscription end to end against an
// RPC client, serialized by a PipelineLock so the platform wallet's UTXO
// set and key are never raced.
type Pipeline struct {
	rpc         chain.RPCClient
	params      *chain.Params
	lock        *PipelineLock
	privKey     *btcec.PrivateKey
	fundingAddr string
	fundingSPK  []byte // platform wallet's own scriptPubKey, used for change and reveal destination
	log         *logging.Logger
}

// NewPipeline builds an inscription pipeline bound to one RPC endpoint and
// signing key. fundingScriptPubKey is the platform wallet's own
// scriptPubKey, used both for commit-transaction change and as the reveal
// transaction's destination output.
func NewPipeline(rpc chain.RPCClient, params *chain.Params, lock *PipelineLock, privKey *btcec.PrivateKey, fundingAddr string, fundingScriptPubKey []byte, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.GetDefault()
	}
	return &Pipeline{
		rpc:         rpc,
		params:      params,
		lock:        lock,
		privKey:     privKey,
		fundingAddr: fundingAddr,
		fundingSPK:  fundingScriptPubKey,
		log:         log.Component("inscribe"),
	}
}

// Result is what a completed inscription reports back to its caller.
type Result struct {
	CommitTxID string
	RevealTxID string
}

// Run executes one full commit-reveal inscription carrying payload under
// op, acquiring the pipeline lock for its whole duration.
func (p *Pipeline) Run(ctx context.Context, op Op, payload []byte) (*Result, error) {
	if err := p.lock.Acquire(ctx); err != nil {
		return nil, model.Wrap(model.TokenOpFailed, "acquire pipeline lock", err)
	}
	defer p.lock.Release()

	commitSompi, revealSompi := AmountsFor(op)
	xOnlyPub := schnorr.SerializePubKey(p.privKey.PubKey())

	redeemScript, err := BuildRedeemScript(xOnlyPub, payload)
	if err != nil {
		return nil, model.Wrap(model.TokenOpFailed, "build redeem script", err)
	}

	commitAddrRaw := P2SHAddress(redeemScript, p.params)
	commitAddr := FormatAddress(commitAddrRaw, p.params)
	p.log.Debug("derived commit address", "address", commitAddr, "op", op)

	// The DAA score is logged when the operation starts: UTXOs carry
	// their own scores, so a selection dispute can be replayed against the
	// score the node reported when the operation started.
	daaScore, err := p.rpc.GetVirtualDAAScore(ctx)
	if err != nil {
		return nil, model.Wrap(model.RpcError, "fetch virtual DAA score", err)
	}
	p.log.Info("starting inscription", "op", op, "daa_score", daaScore)

	fundingUTXOs, err := p.rpc.GetUTXOsByAddress(ctx, p.fundingAddr)
	if err != nil {
		return nil, model.Wrap(model.RpcError, "fetch funding utxos", err)
	}

	selected, _, ok := SelectUTXOs(fundingUTXOs, commitSompi)
	if !ok {
		return nil, model.New(model.TokenOpFailed, "insufficient funding utxos for commit")
	}

	commitTx, err := BuildCommitTx(selected, commitSompi, redeemScript, p.fundingSPK, p.params)
	if err != nil {
		return nil, err
	}

	prevSPKs := make([][]byte, len(selected))
	for i, u := range selected {
		spk, err := hex.DecodeString(u.ScriptHex)
		if err != nil {
			return nil, model.Wrap(model.TokenOpFailed, "decode funding utxo scriptPubKey", err)
		}
		prevSPKs[i] = spk
	}
	if err := SignCommitInputs(commitTx, p.privKey, prevSPKs); err != nil {
		return nil, err
	}

	commitTxID, err := p.rpc.SubmitTransaction(ctx, commitTx)
	if err != nil {
		return nil, model.Wrap(model.RpcError, "submit commit transaction", err)
	}
	p.log.Info("submitted commit", "txid", commitTxID, "op", op)

	if err := p.waitConfirmed(ctx, commitTxID, confirmPollAttempts); err != nil {
		return nil, model.Wrap(model.CommitNotConfirmed, fmt.Sprintf("commit %s not confirmed", commitTxID), err)
	}

	commitVout, commitAmount, err := p.findCommitOutput(ctx, commitAddr, commitTxID)
	if err != nil {
		return nil, err
	}

	revealTx, err := BuildRevealTx(commitTxID, commitVout, commitAmount, revealSompi, p.fundingSPK)
	if err != nil {
		return nil, err
	}
	if err := SignRevealInput(revealTx, p.privKey, redeemScript); err != nil {
		return nil, err
	}

	revealTxID, err := p.rpc.SubmitTransaction(ctx, revealTx)
	if err != nil {
		return nil, model.Wrap(model.RpcError, "submit reveal transaction", err)
	}
	p.log.Info("submitted reveal", "txid", revealTxID, "op", op)

	if err := p.waitConfirmed(ctx, revealTxID, confirmPollAttempts); err != nil {
		return nil, model.Wrap(model.RevealNotConfirmed, fmt.Sprintf("reveal %s not confirmed", revealTxID), err)
	}

	return &Result{CommitTxID: commitTxID, RevealTxID: revealTxID}, nil
}

// waitConfirmed polls IsConfirmed at confirmPollInterval for up to
// maxAttempts tries.
func (p *Pipeline) waitConfirmed(ctx context.Context, txid string, maxAttempts int) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		ok, err := p.rpc.IsConfirmed(ctx, txid)
		if err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return fmt.Errorf("inscribe: %s did not confirm within %d attempts", txid, maxAttempts)
}

// findCommitOutput re-fetches the commit P2SH address's UTXOs from the
// indexer-backed RPC for the specific commit txid, retrying since indexing
// can lag a confirmation by a few seconds.
func (p *Pipeline) findCommitOutput(ctx context.Context, commitAddr, commitTxID string) (vout uint32, amountSompi int64, err error) {
	ticker := time.NewTicker(commitUTXOPollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < commitUTXOPollAttempts; attempt++ {
		utxos, rpcErr := p.rpc.GetUTXOsByAddress(ctx, commitAddr)
		if rpcErr == nil {
			for _, u := range utxos {
				if u.TxID == commitTxID {
					return u.Vout, u.AmountSompi, nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-ticker.C:
		}
	}
	return 0, 0, model.New(model.CommitUtxoNotIndexed, "commit output not indexed at P2SH address")
}
