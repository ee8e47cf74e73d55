package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// InstrumentInfo describes one tradable symbol
type InstrumentInfo struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`   // "Active", "Paused", "Closed"
	MinPrice     int64  `json:"minPrice"` // inclusive
	MaxPrice     int64  `json:"maxPrice"` // exclusive
	MaxOrderSize int64  `json:"maxOrderSize"`
	Ladder       string `json:"ladder"` // "dense" or "sparse"
	BestBid      *int64 `json:"bestBid"`
	BestAsk      *int64 `json:"bestAsk"`
}

// BookSnapshot represents current book state
type BookSnapshot struct {
	Symbol    string       `json:"symbol"`
	BestBid   *int64       `json:"bestBid"`
	BestAsk   *int64       `json:"bestAsk"`
	Bids      []PriceLevel `json:"bids"`      // Sorted high to low
	Asks      []PriceLevel `json:"asks"`      // Sorted low to high
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// PriceLevel is the outstanding size at one price
type PriceLevel struct {
	Price  int64 `json:"price"`
	Size   int64 `json:"size"`
	Orders int   `json:"orders"`
}

// TradeInfo represents a recorded fill
type TradeInfo struct {
	Seq       uint64 `json:"seq"`
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Side      string `json:"side"` // taker side
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// AccountInfo represents a trader's balances
type AccountInfo struct {
	Trader      string           `json:"trader"`
	Balance     int64            `json:"balance"` // cents
	Assets      map[string]int64 `json:"assets"`
	Outstanding map[string]int64 `json:"outstanding"` // resting size per symbol
	TradeCount  int64            `json:"tradeCount"`
	Volume      int64            `json:"volume"`
}

// FillInfo is one match reported back to the order's submitter
type FillInfo struct {
	Price        int64  `json:"price"`
	Size         int64  `json:"size"`
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	MakerOrderID string `json:"makerOrderId"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders. Field matching is
// case-insensitive, so {"Amount":3,"OrderType":"Sell","TraderId":"x",...}
// is accepted as well.
type SubmitOrderRequest struct {
	Amount    int64  `json:"amount"`
	Price     int64  `json:"price"`
	OrderType string `json:"orderType"` // "Buy" or "Sell"
	TraderID  string `json:"traderId"`
	Symbol    string `json:"symbol"`
}

// SubmitOrderResponse is the response from order submission
type SubmitOrderResponse struct {
	Status    string     `json:"status"`            // "filled", "partially_filled", "resting"
	OrderID   string     `json:"orderId,omitempty"` // set when part of the order rests
	Filled    int64      `json:"filled"`
	Remaining int64      `json:"remaining"`
	Fills     []FillInfo `json:"fills"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

// CancelOrderResponse reports what was removed from the book
type CancelOrderResponse struct {
	Status    string `json:"status"` // "cancelled"
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Remaining int64  `json:"remaining"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSRequest is sent by the client. Op is "subscribe", "unsubscribe" or "order".
type WSRequest struct {
	Op       string              `json:"op"`
	Channels []string            `json:"channels"` // e.g., ["book:AAPL", "trades:AAPL"]
	Order    *SubmitOrderRequest `json:"order,omitempty"`
}

// WSOrderResult answers an "order" op on the same connection
type WSOrderResult struct {
	Type   string               `json:"type"` // "order_result"
	Result *SubmitOrderResponse `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// BookUpdate is broadcast on book:{symbol} after every change
type BookUpdate struct {
	Type string `json:"type"` // "book"
	BookSnapshot
}

// TradeUpdate is broadcast on trades:{symbol} for each fill
type TradeUpdate struct {
	Type      string `json:"type"` // "trade"
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Size      int64  `json:"size"`
	Side      string `json:"side"`
	Timestamp int64  `json:"timestamp"`
}
