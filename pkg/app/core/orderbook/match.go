package orderbook

// sweepSell crosses an incoming sell against bids, best bid first, down to
// and including the sell's limit. The returned request carries what is left.
func (ob *OrderBook) sweepSell(sell OrderRequest) OrderRequest {
	for sell.Amount > 0 && ob.bestBid != NoBid && ob.bestBid >= sell.Price {
		p := ob.bestBid
		q := ob.bids.Level(p)
		sell.Amount = ob.matchLevel(q, sell)
		if !q.IsEmpty() {
			// Level still has liquidity, so the aggressor is exhausted.
			break
		}
		ob.bids.Release(p)
		ob.refreshBest(Buy, p)
	}
	return sell
}

// sweepBuy is the mirror of sweepSell: asks from the best ask up to the limit.
func (ob *OrderBook) sweepBuy(buy OrderRequest) OrderRequest {
	for buy.Amount > 0 && ob.bestAsk != NoAsk && ob.bestAsk <= buy.Price {
		p := ob.bestAsk
		q := ob.asks.Level(p)
		buy.Amount = ob.matchLevel(q, buy)
		if !q.IsEmpty() {
			break
		}
		ob.asks.Release(p)
		ob.refreshBest(Sell, p)
	}
	return buy
}

// matchLevel fills taker against q in FIFO order and returns the taker's
// remaining amount. Exhausted resting orders are removed from q.
func (ob *OrderBook) matchLevel(q *PriceLevelQueue, taker OrderRequest) int64 {
	remaining := taker.Amount
	for remaining > 0 && !q.IsEmpty() {
		maker := q.Front()
		traded := min(remaining, maker.Remaining)

		remaining -= traded
		maker.Remaining -= traded

		f := Fill{
			Amount:         traded,
			Price:          maker.Price,
			Symbol:         ob.symbol,
			Timestamp:      ob.clock.Now(),
			TakerSide:      taker.Side,
			MakerOrderID:   maker.ID,
			MakerRemaining: maker.Remaining,
		}
		if taker.Side == Buy {
			f.Buyer, f.Seller = taker.Trader, maker.Trader
		} else {
			f.Buyer, f.Seller = maker.Trader, taker.Trader
		}

		if maker.Remaining == 0 {
			q.RemoveAt(0)
		}
		ob.sink.OnFill(f)
	}
	return remaining
}
