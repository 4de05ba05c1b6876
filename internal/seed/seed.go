// Package seed creates the initial event and market ladder the engine
// trades against: one event per asset/deadline, one market per threshold,
// each with its YES/NO token pair deployed through the token service.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/kasmarket/prophet-engine/internal/model"
	"github.com/kasmarket/prophet-engine/internal/store"
	"github.com/kasmarket/prophet-engine/internal/token"
	"github.com/kasmarket/prophet-engine/pkg/logging"
)

// Ladder describes one event and the threshold series of markets under it.
type Ladder struct {
	Title       string
	Description string
	Asset       string
	Deadline    time.Time
	Direction   model.Direction
	Thresholds  []float64
	Liquidity   float64
	FeeBps      int64
}

func (l *Ladder) validate() error {
	if l.Asset == "" {
		return model.New(model.InvalidTicker, "seed: asset symbol is required")
	}
	if l.Direction != model.GTE && l.Direction != model.LTE {
		return model.New(model.InvalidDirection, "seed: direction must be >= or <=")
	}
	if l.Liquidity <= 0 {
		return model.New(model.InvalidLiquidity, "seed: liquidity parameter must be positive")
	}
	if len(l.Thresholds) == 0 {
		return fmt.Errorf("seed: at least one threshold is required")
	}
	return nil
}

// Apply seeds the ladder into the store inside one transaction: the event,
// every threshold market, and each market's token pair. A token-service
// failure (e.g. an on-chain deploy that never confirms) rolls the whole
// ladder back.
func Apply(ctx context.Context, s *store.Store, tokens token.Service, l Ladder) (eventID string, marketIDs []string, err error) {
	if err := l.validate(); err != nil {
		return "", nil, err
	}

	log := logging.GetDefault().Component("seed")

	err = s.Transact(func(tx *store.Tx) error {
		event := &model.Event{
			ID:          store.NewID(),
			Title:       l.Title,
			Description: l.Description,
			Asset:       l.Asset,
			DeadlineMs:  l.Deadline.UnixMilli(),
			CreatedAt:   time.Now(),
		}
		tx.PutEvent(event)
		eventID = event.ID

		for _, threshold := range l.Thresholds {
			market := &model.Market{
				ID:        store.NewID(),
				EventID:   event.ID,
				Threshold: threshold,
				Direction: l.Direction,
				Status:    model.StatusOpen,
				Liquidity: l.Liquidity,
				FeeBps:    l.FeeBps,
			}
			tx.PutMarket(market)
			if err := tokens.DeployMarketTokens(ctx, tx, event, market); err != nil {
				return err
			}
			marketIDs = append(marketIDs, market.ID)
			log.Info("seeded market", "market", market.ID, "asset", l.Asset, "threshold", threshold, "yes", market.YesTicker, "no", market.NoTicker)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return eventID, marketIDs, nil
}
