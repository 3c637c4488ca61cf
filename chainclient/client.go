// Package chainclient talks to the Ethereum JSON-RPC chain node:
// eth_blockNumber to find the chain head, and eth_call against the
// contract's view functions (currentPhase, getDepositedTokens,
// getAllTokenPreferences, tradeInitiatedAtBlock), pinned or unpinned. It
// is a distinct transport from package jsonrpc: this client is the
// outbound, high-frequency side (N watchers polling every 2s, each call
// bounded to a 10s timeout), so it is built on valyala/fasthttp rather
// than net/http.
package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru"
	"github.com/valyala/fasthttp"

	"github.com/ttc-protocol/ttc-monitor/common"
	"github.com/ttc-protocol/ttc-monitor/log"
	"github.com/ttc-protocol/ttc-monitor/ttcerr"
)

var logger = log.NewModuleLogger(log.ChainClient)

const (
	callTimeout = 10 * time.Second
	maxAttempts = 3
)

// Client is a thin eth_call/eth_blockNumber wrapper. One Client is shared
// by every chainwatcher and prover goroutine; fasthttp's client pools
// connections internally so this is safe under concurrent use.
type Client struct {
	endpoint string
	http     *fasthttp.Client

	// prefCache holds decoded (address, block) -> preference-graph reads.
	// A read pinned to a mined block never changes, so a second read of
	// the same pinned block (for example by a reclaimed job) is served
	// without another eth_call.
	prefCache *lru.Cache
}

func New(endpoint string) *Client {
	cache, err := lru.New(256)
	if err != nil {
		panic(err) // only fails for a non-positive size, which is a programming error
	}
	return &Client{
		endpoint: endpoint,
		http: &fasthttp.Client{
			MaxConnsPerHost: 64,
		},
		prefCache: cache,
	}
}

// BlockNumber returns the chain head as seen by the node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var hex string
	if err := c.call(ctx, &hex, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return parseQuantity(hex)
}

// CurrentPhase reads the contract's currentPhase() view, optionally pinned
// to a historical block (blockTag == "" means "latest").
func (c *Client) CurrentPhase(ctx context.Context, contract common.Address, blockTag string) (Phase, error) {
	out, err := c.ethCall(ctx, contract, selectorCurrentPhase, blockTag)
	if err != nil {
		return 0, err
	}
	if len(out) < 32 {
		return 0, ttcerr.New(ttcerr.Transient, ttcerr.TagChainUnreachable, contract.Hex(), "truncated currentPhase response")
	}
	return Phase(out[31]), nil
}

// TradeInitiatedAtBlock reads tradeInitiatedAtBlock(); returns 0 if Trade
// has not yet been entered (the contract's own zero-value convention).
func (c *Client) TradeInitiatedAtBlock(ctx context.Context, contract common.Address, blockTag string) (uint64, error) {
	out, err := c.ethCall(ctx, contract, selectorTradeInitiatedAtBlock, blockTag)
	if err != nil {
		return 0, err
	}
	return decodeUint64(out)
}

// DepositedTokens reads getDepositedTokens(): the (collection, tokenID,
// owner) triples currently held, pinned to blockTag.
func (c *Client) DepositedTokens(ctx context.Context, contract common.Address, blockTag string) ([]DepositedToken, error) {
	out, err := c.ethCall(ctx, contract, selectorGetDepositedTokens, blockTag)
	if err != nil {
		return nil, err
	}
	return decodeDepositedTokens(out)
}

// AllTokenPreferences reads getAllTokenPreferences(): each vertex's
// ranked preference list over token hashes, pinned to blockTag. Results
// are cached per (contract, blockTag) since blockTag != "latest" reads
// are immutable once mined.
func (c *Client) AllTokenPreferences(ctx context.Context, contract common.Address, blockTag string) ([]PreferenceEntry, error) {
	key := contract.Hex() + "@" + blockTag
	if blockTag != "" && blockTag != "latest" {
		if cached, ok := c.prefCache.Get(key); ok {
			return cached.([]PreferenceEntry), nil
		}
	}

	out, err := c.ethCall(ctx, contract, selectorGetAllTokenPreferences, blockTag)
	if err != nil {
		return nil, err
	}
	prefs, err := decodePreferences(out)
	if err != nil {
		return nil, err
	}

	if blockTag != "" && blockTag != "latest" {
		c.prefCache.Add(key, prefs)
	}
	return prefs, nil
}

func (c *Client) ethCall(ctx context.Context, contract common.Address, selector string, blockTag string) ([]byte, error) {
	if blockTag == "" {
		blockTag = "latest"
	}
	callObj := map[string]string{
		"to":   contract.Hex(),
		"data": selector,
	}
	var hexResult string
	if err := c.call(ctx, &hexResult, "eth_call", callObj, blockTag); err != nil {
		return nil, err
	}
	return common.FromHex(hexResult), nil
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  []interface{}   `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("chain node error %d: %s", e.Code, e.Message) }

// call performs one JSON-RPC round trip with bounded retries for
// transient network failures.
func (c *Client) call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	body, err := json.Marshal(&rpcEnvelope{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return ttcerr.Wrap(err, ttcerr.InvalidInput, ttcerr.TagChainUnreachable, method)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)

	var resp rpcResponse
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		return c.doOnce(reqCtx, body, &resp)
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("chain call retrying", "method", method, "err", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagChainTimeout, method)
	}
	if resp.Error != nil {
		return ttcerr.Wrap(resp.Error, ttcerr.Transient, ttcerr.TagChainUnreachable, method)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return ttcerr.Wrap(err, ttcerr.Transient, ttcerr.TagChainUnreachable, method)
		}
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, body []byte, out *rpcResponse) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(callTimeout)
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("chain node returned HTTP %d", resp.StatusCode())
	}
	return json.Unmarshal(resp.Body(), out)
}
