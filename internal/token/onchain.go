package token

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/indexer"
	"github.com/kasmarket/prophet-engine/internal/inscribe"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/pkg/helpers"
)

// deployIndexWaitAttempts/deployIndexWaitDelay bound how long DeployMarketTokens
// waits for the indexer to pick up a deploy inscription before giving up.
const (
	deployIndexWaitAttempts = 8
	deployIndexWaitDelay    = 500 * time.Millisecond
)

// onChainService implements Service by issuing real KRC-20 inscriptions
// through the commit-reveal pipeline, consulting the indexer to confirm
// deploys and balances. Burn and redeem remain logical ledger operations:
// KRC-20 has no native burn opcode, so "burning" a side's shares means the
// platform's own inventory counter absorbs them and no transfer inscription
// is issued.
type onChainService struct {
	baseService
	pipeline     *inscribe.Pipeline
	indexer      *indexer.Client
	platformAddr string
}

// NewOnChain builds a Service backed by a live inscription pipeline and
// indexer client.
func NewOnChain(auditLog *audit.Log, pipeline *inscribe.Pipeline, idx *indexer.Client, platformAddr string) Service {
	return &onChainService{
		baseService:  baseService{audit: auditLog},
		pipeline:     pipeline,
		indexer:      idx,
		platformAddr: platformAddr,
	}
}

// deployMaxSupply caps the KRC-20 supply a market token may ever reach;
// deployMintBatch is the slice of it the platform mints into its own
// custody right after deploy. Subsequent Mint calls transfer out of that
// pre-minted inventory; when it runs low the operator mints another batch
// out of band.
const (
	deployMaxSupply = 1_000_000_000
	deployMintBatch = 1_000_000
)

func (s *onChainService) DeployMarketTokens(ctx context.Context, tx *store.Tx, event *model.Event, market *model.Market) error {
	yes, no := allocateTokens(tx, event, market, 8)

	maxSupply, err := inscribe.BaseUnits(deployMaxSupply)
	if err != nil {
		return model.Wrap(model.TokenOpFailed, "convert max supply", err)
	}
	mintLimit, err := inscribe.BaseUnits(deployMintBatch)
	if err != nil {
		return model.Wrap(model.TokenOpFailed, "convert mint limit", err)
	}

	for _, t := range []*model.Token{yes, no} {
		payload := inscribe.NewDeployPayload(t.Ticker, maxSupply, mintLimit, int(t.Decimals))
		body, err := inscribe.Marshal(payload)
		if err != nil {
			return model.Wrap(model.TokenOpFailed, "marshal deploy payload", err)
		}
		result, err := s.pipeline.Run(ctx, inscribe.OpDeploy, body)
		if err != nil {
			return model.Wrap(model.MintFailed, fmt.Sprintf("deploy inscription for %s", t.Ticker), err)
		}
		t.DeployTxID = result.RevealTxID
		if err := s.indexer.WaitForToken(ctx, t.Ticker, deployIndexWaitAttempts, deployIndexWaitDelay); err != nil {
			return model.Wrap(model.MintFailed, fmt.Sprintf("indexer never confirmed deploy of %s", t.Ticker), err)
		}

		mintBody, err := inscribe.Marshal(inscribe.NewMintPayload(t.Ticker))
		if err != nil {
			return model.Wrap(model.TokenOpFailed, "marshal mint payload", err)
		}
		mintResult, err := s.pipeline.Run(ctx, inscribe.OpMint, mintBody)
		if err != nil {
			return model.Wrap(model.MintFailed, fmt.Sprintf("inventory mint inscription for %s", t.Ticker), err)
		}

		t.TotalSupply = deployMintBatch
		t.PlatformInventory = deployMintBatch
		s.recordEvent(model.EventMint, t.Ticker, s.platformAddr, deployMintBatch, market.ID, mintResult.RevealTxID)
	}
	return nil
}

func (s *onChainService) Mint(ctx context.Context, tx *store.Tx, ticker, recipient string, amount float64, tradeID string) error {
	t, ok := tx.Token(ticker)
	if !ok {
		return model.New(model.NotFound, "token not found: "+ticker)
	}
	if t.PlatformInventory < amount {
		return model.New(model.TokenOpFailed, "platform inventory exhausted for "+ticker)
	}

	if exists, err := s.indexer.TokenExists(ctx, ticker); err != nil || !exists {
		return model.Wrap(model.TokenOpFailed, "deploy not yet indexed for "+ticker, err)
	}

	amt, err := inscribe.BaseUnits(amount)
	if err != nil {
		return model.Wrap(model.TokenOpFailed, "convert transfer amount", err)
	}
	payload := inscribe.NewTransferPayload(ticker, amt, recipient)
	body, err := inscribe.Marshal(payload)
	if err != nil {
		return model.Wrap(model.TokenOpFailed, "marshal transfer payload", err)
	}
	result, err := s.pipeline.Run(ctx, inscribe.OpTransfer, body)
	if err != nil {
		return model.Wrap(model.MintFailed, "mint transfer inscription", err)
	}

	t.PlatformInventory -= amount
	s.recordEvent(model.EventMint, ticker, recipient, amount, tradeID, result.RevealTxID)
	return nil
}

// Burn is a logical inventory move: the platform custodies all shares
// on-chain under its own address, so returning a sold share to inventory
// requires no on-chain transfer, only a ledger update. tradeID is recorded
// in the audit trail even though no transaction accompanies it.
func (s *onChainService) Burn(_ context.Context, tx *store.Tx, ticker, holder string, amount float64, tradeID string) error {
	t, ok := tx.Token(ticker)
	if !ok {
		return model.New(model.NotFound, "token not found: "+ticker)
	}
	t.PlatformInventory += amount
	s.recordEvent(model.EventBurn, ticker, holder, amount, tradeID, "")
	return nil
}

func (s *onChainService) Redeem(_ context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) (float64, error) {
	t, ok := tx.Token(ticker)
	if !ok {
		return 0, model.New(model.NotFound, "token not found: "+ticker)
	}
	t.TotalSupply -= amount
	s.recordEvent(model.EventRedeem, ticker, holder, amount, resolutionTxID, "")
	return amount, nil
}

func (s *onChainService) BurnLosing(_ context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) error {
	t, ok := tx.Token(ticker)
	if !ok {
		return model.New(model.NotFound, "token not found: "+ticker)
	}
	t.TotalSupply -= amount
	s.recordEvent(model.EventBurn, ticker, holder, amount, resolutionTxID, "")
	return nil
}

// BalanceOf derives from local positions; the indexer's reading lags the
// pipeline, so the store is the authoritative per-wallet view and
// IndexedBalance is the optional cross-check.
func (s *onChainService) BalanceOf(tx *store.Tx, ticker, wallet string) float64 {
	return positionBalance(tx, ticker, wallet)
}

// IndexedBalance reads the wallet's balance as the external indexer sees
// it, in whole tokens, for reconciliation against BalanceOf. Any failure
// reads as zero.
func (s *onChainService) IndexedBalance(ctx context.Context, ticker, wallet string) float64 {
	baseUnits, err := s.indexer.Balance(ctx, ticker, wallet)
	if err != nil {
		return 0
	}
	units, err := helpers.ParseAmount(baseUnits, 0)
	if err != nil {
		return 0
	}
	amount, err := strconv.ParseFloat(helpers.FormatAmount(units, 8), 64)
	if err != nil {
		return 0
	}
	return amount
}
