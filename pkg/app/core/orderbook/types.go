package orderbook

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Price is an integer tick inside an instrument's [MinPrice, MaxPrice) range.
type Price int64

// Sentinels for an empty side. Chosen so that crossing checks
// (bestBid >= sell price, bestAsk <= buy price) fail without a special case.
const (
	NoBid Price = -1
	NoAsk Price = math.MaxInt64
)

type OrderID = uuid.UUID

type TraderID string

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the counter side.
func (s Side) Opposite() Side {
	return -s
}

// ParseSide accepts buy/bid and sell/ask in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "bid":
		return Buy, nil
	case "sell", "ask":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSide, s)
	}
}

// OrderRequest is an unvalidated incoming order.
type OrderRequest struct {
	Side   Side
	Amount int64
	Price  Price
	Trader TraderID
	Symbol string
}

// Order is a resting order. It is owned by the PriceLevelQueue it sits in.
type Order struct {
	ID        OrderID
	Trader    TraderID
	Side      Side
	Symbol    string
	Remaining int64
	Price     Price
}

// Fill is one match between an aggressor and a resting order.
type Fill struct {
	Buyer     TraderID
	Seller    TraderID
	Amount    int64
	Price     Price // resting order's price
	Symbol    string
	Timestamp time.Time

	TakerSide      Side
	MakerOrderID   OrderID
	MakerRemaining int64 // resting order's amount left after this fill
}

// Maker returns the trader whose order was resting.
func (f Fill) Maker() TraderID {
	if f.TakerSide == Buy {
		return f.Seller
	}
	return f.Buyer
}

// Taker returns the aggressor's trader.
func (f Fill) Taker() TraderID {
	if f.TakerSide == Buy {
		return f.Buyer
	}
	return f.Seller
}

// FillSink receives fills synchronously, in match order.
type FillSink interface {
	OnFill(Fill)
}

// FillSinkFunc adapts a function to FillSink.
type FillSinkFunc func(Fill)

func (fn FillSinkFunc) OnFill(f Fill) { fn(f) }

// FanOut delivers each fill to every sink in order.
type FanOut []FillSink

func (fo FanOut) OnFill(f Fill) {
	for _, s := range fo {
		if s != nil {
			s.OnFill(f)
		}
	}
}

type nopSink struct{}

func (nopSink) OnFill(Fill) {}
