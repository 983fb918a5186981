package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/macd3/futures-engine/pkg/ratelimit"
)

// Kline is one OHLCV row as returned by GET /v5/market/kline.
type Kline struct {
	StartMs    int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Turnover   float64
}

// GetKline fetches up to limit klines for symbol/interval ending at or
// before endMs (public endpoint).
func (c *Client) GetKline(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]Kline, error) {
	params := map[string]any{
		"category": c.cfg.Category,
		"symbol":   symbol,
		"interval": interval,
	}
	if startMs > 0 {
		params["start"] = startMs
	}
	if endMs > 0 {
		params["end"] = endMs
	}
	if limit > 0 {
		params["limit"] = limit
	}
	raw, err := c.doSigned(ctx, ratelimit.GroupPublic, symbol, http.MethodGet, "/v5/market/kline", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode kline: %w", err)
	}
	out := make([]Kline, 0, len(resp.List))
	for _, row := range resp.List {
		if len(row) < 7 {
			continue
		}
		k := Kline{}
		k.StartMs, _ = strconv.ParseInt(row[0], 10, 64)
		k.Open, _ = strconv.ParseFloat(row[1], 64)
		k.High, _ = strconv.ParseFloat(row[2], 64)
		k.Low, _ = strconv.ParseFloat(row[3], 64)
		k.Close, _ = strconv.ParseFloat(row[4], 64)
		k.Volume, _ = strconv.ParseFloat(row[5], 64)
		k.Turnover, _ = strconv.ParseFloat(row[6], 64)
		out = append(out, k)
	}
	// Bybit returns newest-first; callers expect ascending close_time_ms.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// WalletBalance is one coin's balance row from GET /v5/account/wallet-balance.
type WalletBalance struct {
	Coin            string
	WalletBalance   float64
	AvailableToWithdraw float64
	UnrealisedPnl   float64
}

// GetWalletBalance fetches unified-account balances (private account-query
// group).
func (c *Client) GetWalletBalance(ctx context.Context, accountType string) ([]WalletBalance, error) {
	params := map[string]any{"accountType": accountType}
	raw, err := c.doSigned(ctx, ratelimit.GroupPrivateAccountQuery, "", http.MethodGet, "/v5/account/wallet-balance", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		List []struct {
			Coin []struct {
				Coin                string `json:"coin"`
				WalletBalance       string `json:"walletBalance"`
				AvailableToWithdraw string `json:"availableToWithdraw"`
				UnrealisedPnl       string `json:"unrealisedPnl"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode wallet balance: %w", err)
	}
	var out []WalletBalance
	for _, acct := range resp.List {
		for _, c := range acct.Coin {
			wb := WalletBalance{Coin: c.Coin}
			wb.WalletBalance, _ = strconv.ParseFloat(c.WalletBalance, 64)
			wb.AvailableToWithdraw, _ = strconv.ParseFloat(c.AvailableToWithdraw, 64)
			wb.UnrealisedPnl, _ = strconv.ParseFloat(c.UnrealisedPnl, 64)
			out = append(out, wb)
		}
	}
	return out, nil
}

// Position is one row from GET /v5/position/list.
type Position struct {
	Symbol       string
	Side         string
	Size         float64
	EntryPrice   float64
	PositionIdx  int
	StopLoss     float64
	TakeProfit   float64
}

// GetPositions lists open positions (private_critical group — read by
// execution's position-sync and snapshotter loops and by opctl).
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	params := map[string]any{"category": c.cfg.Category}
	if symbol != "" {
		params["symbol"] = symbol
	}
	raw, err := c.doSigned(ctx, ratelimit.GroupPrivateCritical, symbol, http.MethodGet, "/v5/position/list", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		List []struct {
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Size        string `json:"size"`
			AvgPrice    string `json:"avgPrice"`
			PositionIdx int    `json:"positionIdx"`
			StopLoss    string `json:"stopLoss"`
			TakeProfit  string `json:"takeProfit"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode positions: %w", err)
	}
	out := make([]Position, 0, len(resp.List))
	for _, p := range resp.List {
		pos := Position{Symbol: p.Symbol, Side: p.Side, PositionIdx: p.PositionIdx}
		pos.Size, _ = strconv.ParseFloat(p.Size, 64)
		pos.EntryPrice, _ = strconv.ParseFloat(p.AvgPrice, 64)
		pos.StopLoss, _ = strconv.ParseFloat(p.StopLoss, 64)
		pos.TakeProfit, _ = strconv.ParseFloat(p.TakeProfit, 64)
		out = append(out, pos)
	}
	return out, nil
}

// OrderRequest is the input to CreateOrder, mirroring /v5/order/create's
// body fields.
type OrderRequest struct {
	Symbol      string
	Side        string // Buy | Sell
	OrderType   string // Market | Limit
	Qty         string
	Price       string // required for Limit
	ReduceOnly  bool
	OrderLinkID string
	TimeInForce string
}

// OrderResult is CreateOrder's parsed response.
type OrderResult struct {
	OrderID     string
	OrderLinkID string
}

// CreateOrder submits an order (private_critical group).
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	params := map[string]any{
		"category":    c.cfg.Category,
		"symbol":      req.Symbol,
		"side":        req.Side,
		"orderType":   req.OrderType,
		"qty":         req.Qty,
		"reduceOnly":  req.ReduceOnly,
		"orderLinkId": req.OrderLinkID,
	}
	if req.Price != "" {
		params["price"] = req.Price
	}
	if req.TimeInForce != "" {
		params["timeInForce"] = req.TimeInForce
	}
	raw, err := c.doSigned(ctx, ratelimit.GroupPrivateCritical, req.Symbol, http.MethodPost, "/v5/order/create", params)
	if err != nil {
		return OrderResult{}, err
	}
	var resp struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return OrderResult{}, fmt.Errorf("bybit: decode create order: %w", err)
	}
	return OrderResult{OrderID: resp.OrderID, OrderLinkID: resp.OrderLinkID}, nil
}

// CancelOrder cancels by exchange order id or link id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID, orderLinkID string) error {
	params := map[string]any{"category": c.cfg.Category, "symbol": symbol}
	if orderID != "" {
		params["orderId"] = orderID
	}
	if orderLinkID != "" {
		params["orderLinkId"] = orderLinkID
	}
	_, err := c.doSigned(ctx, ratelimit.GroupPrivateCritical, symbol, http.MethodPost, "/v5/order/cancel", params)
	return err
}

// RealtimeOrder is one row from GET /v5/order/realtime.
type RealtimeOrder struct {
	OrderID     string
	OrderLinkID string
	OrderStatus string
	CumExecQty  float64
	AvgPrice    float64
}

// GetOpenOrders polls live order state (private_order_query group — used
// by the abnormal-handling retry/timeout path).
func (c *Client) GetOpenOrders(ctx context.Context, symbol, orderID string) ([]RealtimeOrder, error) {
	params := map[string]any{"category": c.cfg.Category, "symbol": symbol}
	if orderID != "" {
		params["orderId"] = orderID
	}
	raw, err := c.doSigned(ctx, ratelimit.GroupPrivateOrderQuery, symbol, http.MethodGet, "/v5/order/realtime", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
			OrderStatus string `json:"orderStatus"`
			CumExecQty  string `json:"cumExecQty"`
			AvgPrice    string `json:"avgPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bybit: decode open orders: %w", err)
	}
	out := make([]RealtimeOrder, 0, len(resp.List))
	for _, o := range resp.List {
		ro := RealtimeOrder{OrderID: o.OrderID, OrderLinkID: o.OrderLinkID, OrderStatus: o.OrderStatus}
		ro.CumExecQty, _ = strconv.ParseFloat(o.CumExecQty, 64)
		ro.AvgPrice, _ = strconv.ParseFloat(o.AvgPrice, 64)
		out = append(out, ro)
	}
	return out, nil
}

// SetTradingStop updates SL/TP on an open position (runner trailing-stop
// updates, primary SL set).
func (c *Client) SetTradingStop(ctx context.Context, symbol, stopLoss, takeProfit string, positionIdx int) error {
	params := map[string]any{
		"category":    c.cfg.Category,
		"symbol":      symbol,
		"positionIdx": positionIdx,
	}
	if stopLoss != "" {
		params["stopLoss"] = stopLoss
	}
	if takeProfit != "" {
		params["takeProfit"] = takeProfit
	}
	_, err := c.doSigned(ctx, ratelimit.GroupPrivateCritical, symbol, http.MethodPost, "/v5/position/trading-stop", params)
	return err
}

// Instrument is one row from GET /v5/market/instruments-info, used for qty
// step/price-tick rounding during order sizing.
type Instrument struct {
	Symbol     string
	QtyStep    float64
	MinOrderQty float64
	TickSize   float64
}

// GetInstrumentsInfo fetches trading rules for symbol (public endpoint).
func (c *Client) GetInstrumentsInfo(ctx context.Context, symbol string) (Instrument, error) {
	params := map[string]any{"category": c.cfg.Category, "symbol": symbol}
	raw, err := c.doSigned(ctx, ratelimit.GroupPublic, symbol, http.MethodGet, "/v5/market/instruments-info", params)
	if err != nil {
		return Instrument{}, err
	}
	var resp struct {
		List []struct {
			Symbol      string `json:"symbol"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Instrument{}, fmt.Errorf("bybit: decode instruments info: %w", err)
	}
	if len(resp.List) == 0 {
		return Instrument{}, fmt.Errorf("bybit: no instrument info for %s", symbol)
	}
	row := resp.List[0]
	inst := Instrument{Symbol: row.Symbol}
	inst.QtyStep, _ = strconv.ParseFloat(row.LotSizeFilter.QtyStep, 64)
	inst.MinOrderQty, _ = strconv.ParseFloat(row.LotSizeFilter.MinOrderQty, 64)
	inst.TickSize, _ = strconv.ParseFloat(row.PriceFilter.TickSize, 64)
	return inst, nil
}
