package model

import "time"

// Direction is the comparison a market's resolution condition uses against
// the oracle price.
type Direction string

const (
	GTE Direction = ">="
	LTE Direction = "<="
)

// MarketStatus is the lifecycle state of a Market.
type MarketStatus string

const (
	StatusOpen     MarketStatus = "OPEN"
	StatusResolved MarketStatus = "RESOLVED"
)

// Outcome is the resolved side of a Market, or empty while OPEN.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Side is a trade side: which outcome token is being bought or sold.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// TradeAction distinguishes a buy from a sell.
type TradeAction string

const (
	ActionBuyYes  TradeAction = "BUY_YES"
	ActionBuyNo   TradeAction = "BUY_NO"
	ActionSellYes TradeAction = "SELL_YES"
	ActionSellNo  TradeAction = "SELL_NO"
)

// Event is an immutable seed record: an asset/threshold series shares one
// Event and deadline.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Asset       string    `json:"asset"`
	DeadlineMs  int64     `json:"deadline_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Market is a single binary prediction market over an Event's asset price.
type Market struct {
	ID            string       `json:"id"`
	EventID       string       `json:"event_id"`
	Threshold     float64      `json:"threshold"`
	Direction     Direction    `json:"direction"`
	Status        MarketStatus `json:"status"`
	Outcome       Outcome      `json:"outcome,omitempty"`
	ResolvedAt    *time.Time   `json:"resolved_at,omitempty"`
	ResolvedTxID  string       `json:"resolved_txid,omitempty"`
	ResolvedPrice float64      `json:"resolved_price,omitempty"`
	ResolvedHash  string       `json:"resolved_hash,omitempty"`
	Liquidity     float64      `json:"liquidity"`
	FeeBps        int64        `json:"fee_bps"`
	QYes          float64      `json:"q_yes"`
	QNo           float64      `json:"q_no"`
	Volume        float64      `json:"volume"`
	TradeCount    int64        `json:"trade_count"`
	YesTicker     string       `json:"yes_ticker"`
	NoTicker      string       `json:"no_ticker"`
}

// Trade is an append-only record of one executed buy or sell.
type Trade struct {
	ID                 string      `json:"id"`
	Wallet             string      `json:"wallet"`
	MarketID           string      `json:"market_id"`
	Action             TradeAction `json:"action"`
	Shares             float64     `json:"shares"`
	Cash               float64     `json:"cash"`
	AvgPrice           float64     `json:"avg_price"`
	TokenReturnPending bool        `json:"token_return_pending,omitempty"`
	ExternalTxID       string      `json:"external_txid,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// PositionKey identifies a Position by (wallet, marketID).
type PositionKey struct {
	Wallet   string
	MarketID string
}

// Position tracks one wallet's outstanding shares in one market.
type Position struct {
	Wallet     string  `json:"wallet"`
	MarketID   string  `json:"market_id"`
	YesShares  float64 `json:"yes_shares"`
	NoShares   float64 `json:"no_shares"`
	TotalCost  float64 `json:"total_cost"`
}

// Balance tracks a wallet's custodial cash balance.
type Balance struct {
	Wallet             string  `json:"wallet"`
	Available          float64 `json:"available"`
	CumulativeDeposit  float64 `json:"cumulative_deposit"`
	CumulativeWithdraw float64 `json:"cumulative_withdraw"`
}

// Token is the metadata and ledger state for one market-side ticker.
type Token struct {
	Ticker            string  `json:"ticker"`
	DisplayName       string  `json:"display_name"`
	MarketID          string  `json:"market_id"`
	Side              Side    `json:"side"`
	Asset             string  `json:"asset"`
	Threshold         float64 `json:"threshold"`
	MarketIndexLetter string  `json:"market_index_letter"`
	TotalSupply       float64 `json:"total_supply"`
	PlatformInventory float64 `json:"platform_inventory"`
	Decimals          uint8   `json:"decimals"`
	DeployTxID        string  `json:"deploy_txid,omitempty"`
}

// PricePoint is one entry in a market's implied-probability history.
type PricePoint struct {
	MarketID    string    `json:"market_id"`
	Timestamp   time.Time `json:"timestamp"`
	Probability float64   `json:"probability"`
}

// OracleState is the latest oracle reading the resolver has committed to
// the store: per-asset prices plus the anchoring tick's txid and content
// hash, carried onto markets resolved against it.
type OracleState struct {
	TickID    string             `json:"tick_id"`
	TxID      string             `json:"txid,omitempty"`
	Hash      string             `json:"hash,omitempty"`
	Prices    map[string]float64 `json:"prices"`
	Degraded  map[string]bool    `json:"degraded,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// EventKind classifies an AuditEvent.
type EventKind string

const (
	EventMint   EventKind = "Mint"
	EventBurn   EventKind = "Burn"
	EventRedeem EventKind = "Redeem"
)

// AuditEvent is an append-only record of a mint/burn/redeem mutation,
// persisted independently of the primary store (see internal/audit).
type AuditEvent struct {
	ID          string    `json:"id"`
	Kind        EventKind `json:"kind"`
	Ticker      string    `json:"ticker"`
	Wallet      string    `json:"wallet"`
	Amount      float64   `json:"amount"`
	ReferenceID string    `json:"reference_id"`
	TxID        string    `json:"txid,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
