package orderbook

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/uhyunpark/ladderbook/pkg/util"
)

var (
	ErrPriceOutOfRange = errors.New("price out of range")
	ErrNonPositiveQty  = errors.New("amount must be positive")
	ErrUnknownSide     = errors.New("unknown side")
	ErrWrongSymbol     = errors.New("symbol does not match book")
)

// OrderBook is a single-instrument limit order book with price-time priority.
//
// It performs no locking: callers must give each call exclusive access,
// normally by holding the owning instrument's lock.
type OrderBook struct {
	symbol string
	bids   Ladder
	asks   Ladder

	bestBid Price
	bestAsk Price

	sink   FillSink
	clock  util.Clock
	newID  func() OrderID
	sparse bool
}

type Option func(*OrderBook)

// WithFillSink sets where fills are delivered. Defaults to discarding them.
func WithFillSink(s FillSink) Option {
	return func(ob *OrderBook) { ob.sink = s }
}

func WithClock(c util.Clock) Option {
	return func(ob *OrderBook) { ob.clock = c }
}

// WithSparseLadders backs both sides with B-tree ladders instead of dense slices.
func WithSparseLadders() Option {
	return func(ob *OrderBook) { ob.sparse = true }
}

// WithIDGenerator replaces the random UUID generator for resting orders.
func WithIDGenerator(gen func() OrderID) Option {
	return func(ob *OrderBook) { ob.newID = gen }
}

// NewOrderBook creates an empty book accepting prices in [minPrice, maxPrice).
func NewOrderBook(symbol string, minPrice, maxPrice Price, opts ...Option) *OrderBook {
	ob := &OrderBook{
		symbol:  symbol,
		bestBid: NoBid,
		bestAsk: NoAsk,
		sink:    nopSink{},
		clock:   util.RealClock{},
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(ob)
	}
	if ob.sparse {
		ob.bids = NewSparseLadder(minPrice, maxPrice)
		ob.asks = NewSparseLadder(minPrice, maxPrice)
	} else {
		ob.bids = NewDenseLadder(minPrice, maxPrice)
		ob.asks = NewDenseLadder(minPrice, maxPrice)
	}
	return ob
}

func (ob *OrderBook) Symbol() string { return ob.symbol }

func (ob *OrderBook) Bounds() (Price, Price) { return ob.bids.Bounds() }

// BestBid returns the highest resting bid, false if there are no bids.
func (ob *OrderBook) BestBid() (Price, bool) {
	return ob.bestBid, ob.bestBid != NoBid
}

// BestAsk returns the lowest resting ask, false if there are no asks.
func (ob *OrderBook) BestAsk() (Price, bool) {
	return ob.bestAsk, ob.bestAsk != NoAsk
}

// Validate checks the preconditions Submit relies on. Submit itself does not
// call it; callers validate at their boundary.
func (ob *OrderBook) Validate(req OrderRequest) error {
	if req.Side != Buy && req.Side != Sell {
		return fmt.Errorf("%w: %d", ErrUnknownSide, req.Side)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: %d", ErrNonPositiveQty, req.Amount)
	}
	lo, hi := ob.Bounds()
	if req.Price < lo || req.Price >= hi {
		return fmt.Errorf("%w: %d not in [%d, %d)", ErrPriceOutOfRange, req.Price, lo, hi)
	}
	if req.Symbol != "" && req.Symbol != ob.symbol {
		return fmt.Errorf("%w: %s != %s", ErrWrongSymbol, req.Symbol, ob.symbol)
	}
	return nil
}

// Submit matches req against the opposite side and rests any remainder.
// It returns the id of the resting order, or false when req filled completely.
func (ob *OrderBook) Submit(req OrderRequest) (OrderID, bool) {
	switch req.Side {
	case Buy:
		req = ob.sweepBuy(req)
	case Sell:
		req = ob.sweepSell(req)
	default:
		panic(fmt.Sprintf("orderbook: unknown side %d", req.Side))
	}
	if req.Amount <= 0 {
		return OrderID{}, false
	}
	return ob.rest(req), true
}

func (ob *OrderBook) rest(req OrderRequest) OrderID {
	o := &Order{
		ID:        ob.newID(),
		Trader:    req.Trader,
		Side:      req.Side,
		Symbol:    ob.symbol,
		Remaining: req.Amount,
		Price:     req.Price,
	}
	if req.Side == Buy {
		ob.bids.Insert(o)
		if o.Price > ob.bestBid {
			ob.bestBid = o.Price
		}
	} else {
		ob.asks.Insert(o)
		if o.Price < ob.bestAsk {
			ob.bestAsk = o.Price
		}
	}
	return o.ID
}

// Cancel removes the order with id from the queue at price on side.
// The book keeps no id index, so the caller supplies the location.
func (ob *OrderBook) Cancel(id OrderID, price Price, side Side) (*Order, bool) {
	ladder := ob.ladder(side)
	if ladder == nil {
		return nil, false
	}
	q := ladder.Level(price)
	if q == nil {
		return nil, false
	}
	for i := 0; i < q.Len(); i++ {
		if q.At(i).ID != id {
			continue
		}
		o := q.RemoveAt(i)
		if q.IsEmpty() {
			ladder.Release(price)
			ob.refreshBest(side, price)
		}
		return o, true
	}
	return nil, false
}

func (ob *OrderBook) ladder(side Side) Ladder {
	switch side {
	case Buy:
		return ob.bids
	case Sell:
		return ob.asks
	default:
		return nil
	}
}

// refreshBest repairs the best pointer for side after the level at emptied
// was drained.
func (ob *OrderBook) refreshBest(side Side, emptied Price) {
	if side == Buy {
		if emptied != ob.bestBid {
			return
		}
		if p, ok := ob.bids.HighestAtOrBelow(emptied - 1); ok {
			ob.bestBid = p
		} else {
			ob.bestBid = NoBid
		}
		return
	}
	if emptied != ob.bestAsk {
		return
	}
	if p, ok := ob.asks.LowestAtOrAbove(emptied + 1); ok {
		ob.bestAsk = p
	} else {
		ob.bestAsk = NoAsk
	}
}
