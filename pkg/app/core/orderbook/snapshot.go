package orderbook

// LevelDepth is the outstanding quantity at one price.
type LevelDepth struct {
	Price  Price
	Total  int64
	Orders int
}

// Snapshot is a read-only view of both sides. Diagnostic only.
type Snapshot struct {
	Symbol   string
	MinPrice Price
	MaxPrice Price
	BestBid  Price        // NoBid when empty
	BestAsk  Price        // NoAsk when empty
	Bids     []LevelDepth // high to low
	Asks     []LevelDepth // low to high
}

// Snapshot aggregates every non-empty level. It does not mutate the book.
func (ob *OrderBook) Snapshot() Snapshot {
	lo, hi := ob.Bounds()
	snap := Snapshot{
		Symbol:   ob.symbol,
		MinPrice: lo,
		MaxPrice: hi,
		BestBid:  ob.bestBid,
		BestAsk:  ob.bestAsk,
	}
	ob.bids.Descend(func(q *PriceLevelQueue) bool {
		snap.Bids = append(snap.Bids, LevelDepth{Price: q.price, Total: q.Total(), Orders: q.Len()})
		return true
	})
	ob.asks.Ascend(func(q *PriceLevelQueue) bool {
		snap.Asks = append(snap.Asks, LevelDepth{Price: q.price, Total: q.Total(), Orders: q.Len()})
		return true
	})
	return snap
}

// Orders returns copies of the resting orders at price on side, in priority order.
func (ob *OrderBook) Orders(side Side, price Price) []Order {
	l := ob.ladder(side)
	if l == nil {
		return nil
	}
	q := l.Level(price)
	if q == nil || q.IsEmpty() {
		return nil
	}
	out := make([]Order, q.Len())
	for i := range out {
		out[i] = *q.At(i)
	}
	return out
}

// Depth returns the total outstanding quantity at price on side.
func (ob *OrderBook) Depth(side Side, price Price) int64 {
	l := ob.ladder(side)
	if l == nil {
		return 0
	}
	if q := l.Level(price); q != nil {
		return q.Total()
	}
	return 0
}

// BidTotal sums the bid side.
func (s Snapshot) BidTotal() int64 {
	var total int64
	for _, l := range s.Bids {
		total += l.Total
	}
	return total
}

// AskTotal sums the ask side.
func (s Snapshot) AskTotal() int64 {
	var total int64
	for _, l := range s.Asks {
		total += l.Total
	}
	return total
}
