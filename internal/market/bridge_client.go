package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BridgeClient talks to the MT5 bridge HTTP API. The bridge runs next to
// the terminal and exposes candles, quotes, account state and order
// placement as JSON endpoints.
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridgeClient creates a client for the given bridge address
func NewBridgeClient(baseURL string, timeout time.Duration) *BridgeClient {
	return &BridgeClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Candles fetches the most recent closed candles, oldest first
func (c *BridgeClient) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("timeframe", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	var candles []Candle
	if err := c.get(ctx, "/api/candles?"+params.Encode(), &candles); err != nil {
		return nil, fmt.Errorf("error fetching candles: %w", err)
	}
	return candles, nil
}

// Quote fetches the current bid/ask for a symbol
func (c *BridgeClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var quote Quote
	if err := c.get(ctx, "/api/quote?"+params.Encode(), &quote); err != nil {
		return nil, fmt.Errorf("error fetching quote: %w", err)
	}
	return &quote, nil
}

// AccountInfo fetches the current account snapshot
func (c *BridgeClient) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.get(ctx, "/api/account", &info); err != nil {
		return nil, fmt.Errorf("error fetching account info: %w", err)
	}
	return &info, nil
}

// SymbolInfo fetches the broker constraints for a symbol
func (c *BridgeClient) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var info SymbolInfo
	if err := c.get(ctx, "/api/symbol?"+params.Encode(), &info); err != nil {
		return nil, fmt.Errorf("error fetching symbol info: %w", err)
	}
	return &info, nil
}

// Positions fetches open positions, optionally filtered by symbol
func (c *BridgeClient) Positions(ctx context.Context, symbol string) ([]Position, error) {
	endpoint := "/api/positions"
	if symbol != "" {
		params := url.Values{}
		params.Set("symbol", symbol)
		endpoint += "?" + params.Encode()
	}

	var positions []Position
	if err := c.get(ctx, endpoint, &positions); err != nil {
		return nil, fmt.Errorf("error fetching positions: %w", err)
	}
	return positions, nil
}

// PlaceOrder submits an order to the bridge
func (c *BridgeClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	var result OrderResult
	if err := c.post(ctx, "/api/order", req, &result); err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}
	return &result, nil
}

// ModifyStopLoss moves the stop loss of an open position
func (c *BridgeClient) ModifyStopLoss(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	body := struct {
		Ticket     int64   `json:"ticket"`
		StopLoss   float64 `json:"stop_loss"`
		TakeProfit float64 `json:"take_profit,omitempty"`
	}{Ticket: ticket, StopLoss: stopLoss, TakeProfit: takeProfit}

	if err := c.post(ctx, "/api/modify", body, nil); err != nil {
		return fmt.Errorf("error modifying stop loss: %w", err)
	}
	return nil
}

func (c *BridgeClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge error: %s", string(body))
	}

	return json.Unmarshal(body, out)
}

func (c *BridgeClient) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge error: %s", string(body))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
