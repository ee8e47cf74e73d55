package orderbook

// PriceLevelQueue is the FIFO of resting orders at one price.
// Insertion order is priority order.
type PriceLevelQueue struct {
	price  Price
	orders []*Order
}

func newPriceLevelQueue(p Price) *PriceLevelQueue {
	return &PriceLevelQueue{price: p}
}

func (q *PriceLevelQueue) Price() Price { return q.price }

func (q *PriceLevelQueue) Len() int { return len(q.orders) }

func (q *PriceLevelQueue) IsEmpty() bool { return len(q.orders) == 0 }

// Push appends o at the back of the queue.
func (q *PriceLevelQueue) Push(o *Order) {
	q.orders = append(q.orders, o)
}

// Front returns the oldest order, or nil when empty.
func (q *PriceLevelQueue) Front() *Order {
	if len(q.orders) == 0 {
		return nil
	}
	return q.orders[0]
}

func (q *PriceLevelQueue) At(i int) *Order {
	return q.orders[i]
}

// RemoveAt removes the order at index i keeping the order of the rest.
func (q *PriceLevelQueue) RemoveAt(i int) *Order {
	o := q.orders[i]
	copy(q.orders[i:], q.orders[i+1:])
	q.orders[len(q.orders)-1] = nil
	q.orders = q.orders[:len(q.orders)-1]
	return o
}

// Total returns the outstanding quantity at this level.
func (q *PriceLevelQueue) Total() int64 {
	var total int64
	for _, o := range q.orders {
		total += o.Remaining
	}
	return total
}
