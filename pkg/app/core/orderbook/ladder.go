package orderbook

import "fmt"

// Ladder is one side of the book: price levels over [min, max).
//
// Level order is implied by price; a queue is never reordered. Inserting a
// price outside the bounds is a programming error and panics.
type Ladder interface {
	Bounds() (min, max Price)
	Insert(o *Order)
	// Level returns the queue at p, or nil if p is out of range or has no queue.
	Level(p Price) *PriceLevelQueue
	// Release tells the ladder that the level at p may be empty now.
	Release(p Price)
	HighestAtOrBelow(p Price) (Price, bool)
	LowestAtOrAbove(p Price) (Price, bool)
	// Ascend visits non-empty levels from low to high until fn returns false.
	Ascend(fn func(*PriceLevelQueue) bool)
	// Descend visits non-empty levels from high to low until fn returns false.
	Descend(fn func(*PriceLevelQueue) bool)
}

// DenseLadder stores one queue per tick in a slice indexed by price-min.
// Memory grows with the price range, not the order count.
type DenseLadder struct {
	min    Price
	levels []PriceLevelQueue
}

func NewDenseLadder(min, max Price) *DenseLadder {
	if min < 0 || max <= min {
		panic(fmt.Sprintf("orderbook: invalid ladder bounds [%d, %d)", min, max))
	}
	levels := make([]PriceLevelQueue, max-min)
	for i := range levels {
		levels[i].price = min + Price(i)
	}
	return &DenseLadder{min: min, levels: levels}
}

func (l *DenseLadder) Bounds() (Price, Price) {
	return l.min, l.min + Price(len(l.levels))
}

func (l *DenseLadder) inRange(p Price) bool {
	return p >= l.min && p < l.min+Price(len(l.levels))
}

func (l *DenseLadder) Insert(o *Order) {
	if !l.inRange(o.Price) {
		lo, hi := l.Bounds()
		panic(fmt.Sprintf("orderbook: price %d outside ladder [%d, %d)", o.Price, lo, hi))
	}
	l.levels[o.Price-l.min].Push(o)
}

func (l *DenseLadder) Level(p Price) *PriceLevelQueue {
	if !l.inRange(p) {
		return nil
	}
	return &l.levels[p-l.min]
}

// Release is a no-op: empty levels stay in place.
func (l *DenseLadder) Release(Price) {}

func (l *DenseLadder) HighestAtOrBelow(p Price) (Price, bool) {
	_, hi := l.Bounds()
	if p >= hi {
		p = hi - 1
	}
	for ; p >= l.min; p-- {
		if !l.levels[p-l.min].IsEmpty() {
			return p, true
		}
	}
	return 0, false
}

func (l *DenseLadder) LowestAtOrAbove(p Price) (Price, bool) {
	_, hi := l.Bounds()
	if p < l.min {
		p = l.min
	}
	for ; p < hi; p++ {
		if !l.levels[p-l.min].IsEmpty() {
			return p, true
		}
	}
	return 0, false
}

func (l *DenseLadder) Ascend(fn func(*PriceLevelQueue) bool) {
	for i := range l.levels {
		if l.levels[i].IsEmpty() {
			continue
		}
		if !fn(&l.levels[i]) {
			return
		}
	}
}

func (l *DenseLadder) Descend(fn func(*PriceLevelQueue) bool) {
	for i := len(l.levels) - 1; i >= 0; i-- {
		if l.levels[i].IsEmpty() {
			continue
		}
		if !fn(&l.levels[i]) {
			return
		}
	}
}
