package market

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// Status is the trading status of an instrument.
type Status int8

const (
	Active Status = iota // accepting orders
	Paused               // halted, book kept
	Closed               // terminal
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Paused:
		return "Paused"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

var ErrNotActive = errors.New("instrument not active")

// Params configures one instrument's book.
type Params struct {
	MinPrice     orderbook.Price
	MaxPrice     orderbook.Price
	MaxOrderSize int64 // 0 means unlimited
	Sparse       bool  // use B-tree ladders instead of dense slices
}

// Instrument owns one order book and the lock that serialises access to it.
type Instrument struct {
	Symbol string
	Params Params

	mu     sync.Mutex
	status Status
	book   *orderbook.OrderBook
}

// NewInstrument validates p and builds the instrument's empty book.
// opts are passed to the book (fill sink, clock, ...).
func NewInstrument(symbol string, p Params, opts ...orderbook.Option) (*Instrument, error) {
	inst := &Instrument{Symbol: symbol, Params: p}
	if err := inst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrument params: %w", err)
	}
	if p.Sparse {
		opts = append([]orderbook.Option{orderbook.WithSparseLadders()}, opts...)
	}
	inst.book = orderbook.NewOrderBook(symbol, p.MinPrice, p.MaxPrice, opts...)
	return inst, nil
}

// Validate checks parameter sanity.
func (i *Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if strings.ContainsAny(i.Symbol, ": \t") {
		return fmt.Errorf("symbol %q contains a reserved character", i.Symbol)
	}
	if i.Params.MinPrice < 0 {
		return fmt.Errorf("min price cannot be negative")
	}
	if i.Params.MaxPrice <= i.Params.MinPrice {
		return fmt.Errorf("max price %d must exceed min price %d", i.Params.MaxPrice, i.Params.MinPrice)
	}
	if i.Params.MaxOrderSize < 0 {
		return fmt.Errorf("max order size cannot be negative")
	}
	return nil
}

func (i *Instrument) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// ValidateRequest is the boundary check run before a request reaches the book.
// Callers must hold the instrument lock (it is called from inside Do).
func (i *Instrument) ValidateRequest(req orderbook.OrderRequest) error {
	if i.status != Active {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, i.Symbol, i.status)
	}
	if err := i.book.Validate(req); err != nil {
		return err
	}
	if i.Params.MaxOrderSize > 0 && req.Amount > i.Params.MaxOrderSize {
		return fmt.Errorf("order size %d exceeds maximum %d", req.Amount, i.Params.MaxOrderSize)
	}
	return nil
}

// Do runs fn with exclusive access to the book.
func (i *Instrument) Do(fn func(*orderbook.OrderBook) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return fn(i.book)
}

// Snapshot takes the book snapshot under the instrument lock.
func (i *Instrument) Snapshot() orderbook.Snapshot {
	var snap orderbook.Snapshot
	_ = i.Do(func(book *orderbook.OrderBook) error {
		snap = book.Snapshot()
		return nil
	})
	return snap
}
