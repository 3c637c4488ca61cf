package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client speaks JSON-RPC 2.0 over HTTP to one endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   int
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// CallContext invokes method with the given positional args and decodes
// the result into result (which may be nil if the method returns nothing
// useful, e.g. wake()).
func (c *Client) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	c.nextID++
	id, _ := json.Marshal(c.nextID)

	params, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("jsonrpc: encode params: %w", err)
	}

	reqBody, err := json.Marshal(&Request{JSONRPC: Version, ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("jsonrpc: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("jsonrpc: transport: %w", err)
	}
	defer httpResp.Body.Close()

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("jsonrpc: decode response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, result)
}
