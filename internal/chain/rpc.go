package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kasmarket/prophet-engine/internal/model"
)

// RPCClient is the interface the inscription pipeline depends on. A real
// Kaspa node speaks its own binary wire protocol; this module treats it as
// a JSON-RPC-over-HTTP boundary and converts record types at that edge.
type RPCClient interface {
	SubmitTransaction(ctx context.Context, tx *Transaction) (txid string, err error)
	GetUTXOsByAddress(ctx context.Context, address string) ([]UTXO, error)
	GetVirtualDAAScore(ctx context.Context) (uint64, error)
	IsConfirmed(ctx context.Context, txid string) (bool, error)
}

// httpRPCClient implements RPCClient over a JSON-RPC HTTP endpoint.
// cmd/prophetd builds a single client at startup and the inscription
// pipeline reuses it for every commit-reveal pair; its http.Client keeps
// idle connections pooled across operations rather than opening and
// closing a connection per inscription.
type httpRPCClient struct {
	url        string
	httpClient *http.Client
	requestID  atomic.Uint64
}

// NewRPCClient builds an RPC client against url.
func NewRPCClient(url string) RPCClient {
	return &httpRPCClient{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *httpRPCClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", ID: c.requestID.Add(1), Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return model.Wrap(model.RpcError, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return model.Wrap(model.RpcError, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.Wrap(model.RpcError, fmt.Sprintf("%s: transport", method), err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return model.Wrap(model.RpcError, fmt.Sprintf("%s: decode", method), err)
	}
	if rr.Error != nil {
		return model.New(model.RpcError, fmt.Sprintf("%s: %s", method, rr.Error.Message))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, out); err != nil {
		return model.Wrap(model.RpcError, fmt.Sprintf("%s: unmarshal result", method), err)
	}
	return nil
}

func (c *httpRPCClient) SubmitTransaction(ctx context.Context, tx *Transaction) (string, error) {
	var out struct {
		TxID string `json:"txid"`
	}
	if err := c.call(ctx, "submitTransaction", []interface{}{tx}, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

func (c *httpRPCClient) GetUTXOsByAddress(ctx context.Context, address string) ([]UTXO, error) {
	var out struct {
		Entries []UTXO `json:"entries"`
	}
	if err := c.call(ctx, "getUtxosByAddresses", []interface{}{[]string{address}}, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *httpRPCClient) GetVirtualDAAScore(ctx context.Context) (uint64, error) {
	var out struct {
		VirtualDAAScore uint64 `json:"virtualDaaScore"`
	}
	if err := c.call(ctx, "getBlockDagInfo", nil, &out); err != nil {
		return 0, err
	}
	return out.VirtualDAAScore, nil
}

func (c *httpRPCClient) IsConfirmed(ctx context.Context, txid string) (bool, error) {
	var out struct {
		IsInMempool bool `json:"isInMempool"`
		Accepted    bool `json:"accepted"`
	}
	if err := c.call(ctx, "getMempoolEntry", []interface{}{txid}, &out); err != nil {
		return false, err
	}
	return out.Accepted && !out.IsInMempool, nil
}
