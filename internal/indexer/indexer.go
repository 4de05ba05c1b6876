// Package indexer is a client for the third-party KRC-20 indexer
// (Kasplex) that on-chain token mode consults to confirm a deploy has been
// picked up and to read balances, since inscriptions alone do not tell the
// platform whether the indexer has recognized them yet.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/kasmarket/prophet-engine/internal/model"
)

// Client queries the indexer's HTTP API.
type Client struct {
	http *resty.Client
}

// New builds a Client against baseURL.
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Client{http: c}
}

// tokenInfoResponse is the token endpoint's deployment state and supply.
// A ticker the chain has never seen reports state "unused".
type tokenInfoResponse struct {
	State  string `json:"state"`
	Supply string `json:"minted"`
}

// TokenExists reports whether the indexer has recorded a deploy for
// ticker: any state other than "unused" counts as deployed.
func (c *Client) TokenExists(ctx context.Context, ticker string) (bool, error) {
	var out tokenInfoResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		ForceContentType("application/json").
		SetResult(&out).
		Get("/v1/krc20/token/{ticker}")
	if err != nil {
		return false, model.Wrap(model.RpcError, "indexer: token_exists request", err)
	}
	if resp.IsError() {
		return false, model.New(model.RpcError, fmt.Sprintf("indexer: token_exists status %d", resp.StatusCode()))
	}
	return out.State != "unused", nil
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

// Balance returns the indexer's recorded balance for wallet's holdings of
// ticker, in base units as reported by the indexer (the caller converts).
func (c *Client) Balance(ctx context.Context, ticker, wallet string) (string, error) {
	var out balanceResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetPathParam("address", wallet).
		ForceContentType("application/json").
		SetResult(&out).
		Get("/v1/krc20/address/{address}/token/{ticker}")
	if err != nil {
		return "", model.Wrap(model.RpcError, "indexer: balance request", err)
	}
	if resp.IsError() {
		return "", model.New(model.RpcError, fmt.Sprintf("indexer: balance status %d", resp.StatusCode()))
	}
	return out.Balance, nil
}

// maxBackoff caps the exponential backoff WaitForToken and WaitForBalance
// apply between polls.
const maxBackoff = 10 * time.Second

// WaitForToken polls TokenExists up to maxAttempts times, doubling the
// delay from initialDelay on each miss and capping it at 10s, until it
// reports true or attempts are exhausted.
func (c *Client) WaitForToken(ctx context.Context, ticker string, maxAttempts int, initialDelay time.Duration) error {
	delay := initialDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		exists, err := c.TokenExists(ctx, ticker)
		if err == nil && exists {
			return nil
		}
		select {
		case <-ctx.Done():
			return model.Wrap(model.CommitUtxoNotIndexed, "indexer: token never indexed", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	return model.New(model.CommitUtxoNotIndexed, "indexer: token never indexed within max attempts")
}

// WaitForBalance polls Balance, with the same exponential-backoff shape as
// WaitForToken, until the indexer reports at least minBaseUnits; it always
// returns the last balance it read, even when maxAttempts is exhausted
// without reaching the threshold, so the caller can show a partial fill.
func (c *Client) WaitForBalance(ctx context.Context, ticker, wallet, minBaseUnits string, maxAttempts int, initialDelay time.Duration) (string, error) {
	min, err := decimal.NewFromString(minBaseUnits)
	if err != nil {
		return "", model.Wrap(model.RpcError, "indexer: invalid minBaseUnits", err)
	}

	delay := initialDelay
	last := "0"
	for attempt := 0; attempt < maxAttempts; attempt++ {
		bal, err := c.Balance(ctx, ticker, wallet)
		if err == nil {
			last = bal
			if balDec, parseErr := decimal.NewFromString(bal); parseErr == nil && balDec.Cmp(min) >= 0 {
				return bal, nil
			}
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	return last, model.New(model.CommitUtxoNotIndexed, "indexer: balance threshold not reached within max attempts")
}
