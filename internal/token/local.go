package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kasmarket/prophet-engine/internal/audit"
	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/pkg/helpers"
)

// localService implements Service entirely against in-store counters; it
// never touches the chain. txids are synthetic so trades complete
// synchronously.
type localService struct {
	baseService
}

// NewLocal builds a Service for local mode.
func NewLocal(auditLog *audit.Log) Service {
	return &localService{baseService{audit: auditLog}}
}

func syntheticTxID(prefix string) string {
	buf, err := helpers.GenerateSecureRandom(32)
	if err != nil {
		// crypto/rand failing means the platform's entropy source is broken;
		// fall back to an all-zero buffer rather than panic on a synthetic ID.
		buf = make([]byte, 32)
	}
	raw := fmt.Sprintf("%s%d%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (l *localService) DeployMarketTokens(_ context.Context, tx *store.Tx, event *model.Event, market *model.Market) error {
	yes, no := allocateTokens(tx, event, market, 8)
	yes.DeployTxID = syntheticTxID("deploy")
	no.DeployTxID = syntheticTxID("deploy")
	return nil
}

func (l *localService) Mint(_ context.Context, tx *store.Tx, ticker, recipient string, amount float64, tradeID string) error {
	t, ok := tx.Token(ticker)
	if !ok {
		return model.New(model.NotFound, "token not found: "+ticker)
	}
	t.TotalSupply += amount
	l.recordEvent(model.EventMint, ticker, recipient, amount, tradeID, syntheticTxID("mint"))
	return nil
}

func (l *localService) Burn(_ context.Context, tx *store.Tx, ticker, holder string, amount float64, tradeID string) error {
	t, ok := tx.Token(ticker)
	if !ok {
		return model.New(model.NotFound, "token not found: "+ticker)
	}
	t.PlatformInventory += amount
	l.recordEvent(model.EventBurn, ticker, holder, amount, tradeID, "")
	return nil
}

func (l *localService) Redeem(_ context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) (float64, error) {
	t, ok := tx.Token(ticker)
	if !ok {
		return 0, model.New(model.NotFound, "token not found: "+ticker)
	}
	t.TotalSupply -= amount
	l.recordEvent(model.EventRedeem, ticker, holder, amount, resolutionTxID, "")
	return amount, nil
}

func (l *localService) BurnLosing(_ context.Context, tx *store.Tx, ticker, holder string, amount float64, resolutionTxID string) error {
	t, ok := tx.Token(ticker)
	if !ok {
		return model.New(model.NotFound, "token not found: "+ticker)
	}
	t.TotalSupply -= amount
	l.recordEvent(model.EventBurn, ticker, holder, amount, resolutionTxID, "")
	return nil
}

func (l *localService) BalanceOf(tx *store.Tx, ticker, wallet string) float64 {
	return positionBalance(tx, ticker, wallet)
}
