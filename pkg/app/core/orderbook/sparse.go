package orderbook

import (
	"fmt"

	"github.com/google/btree"
)

// SparseLadder keeps only populated levels in a B-tree ordered by price.
// Use it when the price range is too wide for a DenseLadder.
type SparseLadder struct {
	min, max Price
	tree     *btree.BTreeG[*PriceLevelQueue]
}

func NewSparseLadder(min, max Price) *SparseLadder {
	if min < 0 || max <= min {
		panic(fmt.Sprintf("orderbook: invalid ladder bounds [%d, %d)", min, max))
	}
	return &SparseLadder{
		min: min,
		max: max,
		tree: btree.NewG[*PriceLevelQueue](32, func(a, b *PriceLevelQueue) bool {
			return a.price < b.price
		}),
	}
}

func (l *SparseLadder) Bounds() (Price, Price) { return l.min, l.max }

func (l *SparseLadder) Insert(o *Order) {
	if o.Price < l.min || o.Price >= l.max {
		panic(fmt.Sprintf("orderbook: price %d outside ladder [%d, %d)", o.Price, l.min, l.max))
	}
	q, ok := l.tree.Get(&PriceLevelQueue{price: o.Price})
	if !ok {
		q = newPriceLevelQueue(o.Price)
		l.tree.ReplaceOrInsert(q)
	}
	q.Push(o)
}

func (l *SparseLadder) Level(p Price) *PriceLevelQueue {
	q, ok := l.tree.Get(&PriceLevelQueue{price: p})
	if !ok {
		return nil
	}
	return q
}

// Release drops the level at p once it is empty.
func (l *SparseLadder) Release(p Price) {
	if q := l.Level(p); q != nil && q.IsEmpty() {
		l.tree.Delete(q)
	}
}

func (l *SparseLadder) HighestAtOrBelow(p Price) (Price, bool) {
	var (
		found Price
		ok    bool
	)
	l.tree.DescendLessOrEqual(&PriceLevelQueue{price: p}, func(q *PriceLevelQueue) bool {
		if q.IsEmpty() {
			return true
		}
		found, ok = q.price, true
		return false
	})
	return found, ok
}

func (l *SparseLadder) LowestAtOrAbove(p Price) (Price, bool) {
	var (
		found Price
		ok    bool
	)
	l.tree.AscendGreaterOrEqual(&PriceLevelQueue{price: p}, func(q *PriceLevelQueue) bool {
		if q.IsEmpty() {
			return true
		}
		found, ok = q.price, true
		return false
	})
	return found, ok
}

func (l *SparseLadder) Ascend(fn func(*PriceLevelQueue) bool) {
	l.tree.Ascend(func(q *PriceLevelQueue) bool {
		if q.IsEmpty() {
			return true
		}
		return fn(q)
	})
}

func (l *SparseLadder) Descend(fn func(*PriceLevelQueue) bool) {
	l.tree.Descend(func(q *PriceLevelQueue) bool {
		if q.IsEmpty() {
			return true
		}
		return fn(q)
	})
}
