// Package oracle is a client for the external price oracle the resolution
// engine polls to learn an asset's latest index value and dispersion.
package oracle

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kasmarket/prophet-engine/internal/model"
)

// Status is the oracle's self-reported health for a bundle.
type Status string

const (
	StatusOK       Status = "OK"
	StatusDegraded Status = "DEGRADED"
)

// Latest is the oracle's most recent anchored point: the content hash of
// the published bundle, when it was published, and the anchoring txid if
// the oracle has committed it on-chain.
type Latest struct {
	Hash      string `json:"h"`
	UpdatedAt int64  `json:"updated_at"`
	TxID      string `json:"txid,omitempty"`
}

// Index carries one asset's latest price reading.
type Index struct {
	Price      float64 `json:"price"`
	Dispersion float64 `json:"dispersion"`
	Status     Status  `json:"status"`
}

// Bundle wraps the tick identifier and per-asset index map.
type Bundle struct {
	TickID string           `json:"tick_id"`
	Index  map[string]Index `json:"index"`
}

// Response is the oracle's /latest payload.
type Response struct {
	Latest Latest `json:"latest"`
	Bundle Bundle `json:"bundle"`
}

// Client queries the oracle's HTTP API.
type Client struct {
	http *resty.Client
}

// New builds a Client against baseURL.
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(1)
	return &Client{http: c}
}

// Latest fetches the current bundle. A non-2xx response or a transport
// failure is reported as model.OracleUnavailable so callers can swallow it
// and retry on the next tick rather than treating it as fatal.
func (c *Client) Latest(ctx context.Context) (*Response, error) {
	var out Response
	resp, err := c.http.R().SetContext(ctx).ForceContentType("application/json").SetResult(&out).Get("/latest")
	if err != nil {
		return nil, model.Wrap(model.OracleUnavailable, "oracle: request failed", err)
	}
	if resp.IsError() {
		return nil, model.New(model.OracleUnavailable, "oracle: non-2xx response")
	}
	return &out, nil
}

// PriceFor returns the price reading for asset, or ok=false if the bundle
// doesn't carry it at all. A DEGRADED reading (single upstream source) is
// still usable; degraded is reported back so the caller can flag the tick
// rather than discard the reading.
func (r *Response) PriceFor(asset string) (price float64, degraded bool, ok bool) {
	idx, found := r.Bundle.Index[asset]
	if !found {
		return 0, false, false
	}
	return idx.Price, idx.Status == StatusDegraded, true
}
