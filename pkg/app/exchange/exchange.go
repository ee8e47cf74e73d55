package exchange

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/pkg/app/core/account"
	"github.com/uhyunpark/ladderbook/pkg/app/core/market"
	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

var ErrOrderNotFound = errors.New("order not found")

// Result describes what happened to one submitted order.
type Result struct {
	OrderID orderbook.OrderID
	Rested  bool
	// Remaining is the quantity left resting in the book (0 if fully filled).
	Remaining int64
	Fills     []orderbook.Fill
}

// Filled is the total quantity traded by the order on entry.
func (r Result) Filled() int64 {
	var n int64
	for _, f := range r.Fills {
		n += f.Amount
	}
	return n
}

// Update is published after every book mutation, outside any lock.
type Update struct {
	Symbol string
	Fills  []orderbook.Fill
}

// location is where a resting order lives, so it can be cancelled by id.
type location struct {
	symbol string
	trader orderbook.TraderID
	side   orderbook.Side
	price  orderbook.Price
}

// fillBuffer collects a book's fills during one call. It is only touched
// while the owning instrument's lock is held.
type fillBuffer struct {
	fills []orderbook.Fill
}

func (b *fillBuffer) OnFill(f orderbook.Fill) { b.fills = append(b.fills, f) }

func (b *fillBuffer) drain() []orderbook.Fill {
	out := b.fills
	b.fills = nil
	return out
}

// Exchange routes orders to per-symbol books and settles the resulting fills.
//
// Lock order: instrument lock, then trader locks, then the exchange lock.
// The exchange lock is never held while acquiring an instrument lock.
type Exchange struct {
	registry *market.Registry
	accounts *account.Manager
	sinks    orderbook.FanOut
	logger   *zap.Logger

	mu      sync.Mutex
	buffers map[string]*fillBuffer
	open    map[orderbook.OrderID]location
	hooks   []func(Update)

	bookOpts []orderbook.Option
}

// New creates an exchange. accounts may be nil to skip settlement. sinks
// receive every fill, in order, after the accounts have been updated.
func New(registry *market.Registry, accounts *account.Manager, logger *zap.Logger, sinks ...orderbook.FillSink) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = market.NewRegistry()
	}
	return &Exchange{
		registry: registry,
		accounts: accounts,
		sinks:    orderbook.FanOut(sinks),
		logger:   logger,
		buffers:  make(map[string]*fillBuffer),
		open:     make(map[orderbook.OrderID]location),
	}
}

// WithBookOptions sets extra options (clock, id generator) applied to every
// instrument added afterwards.
func (e *Exchange) WithBookOptions(opts ...orderbook.Option) *Exchange {
	e.bookOpts = append(e.bookOpts, opts...)
	return e
}

// OnUpdate registers fn to be called after each submit or cancel.
func (e *Exchange) OnUpdate(fn func(Update)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, fn)
}

func (e *Exchange) Registry() *market.Registry { return e.registry }

func (e *Exchange) Accounts() *account.Manager { return e.accounts }

// AddInstrument creates and registers a book for symbol.
func (e *Exchange) AddInstrument(symbol string, p market.Params) (*market.Instrument, error) {
	buf := &fillBuffer{}
	opts := append([]orderbook.Option{}, e.bookOpts...)
	opts = append(opts, orderbook.WithFillSink(buf))

	inst, err := market.NewInstrument(symbol, p, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.registry.Register(inst); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.buffers[symbol] = buf
	e.mu.Unlock()

	e.logger.Info("instrument_added",
		zap.String("symbol", symbol),
		zap.Int64("min_price", int64(p.MinPrice)),
		zap.Int64("max_price", int64(p.MaxPrice)),
		zap.Bool("sparse", p.Sparse))
	return inst, nil
}

func (e *Exchange) instrument(symbol string) (*market.Instrument, *fillBuffer, error) {
	inst, err := e.registry.Get(symbol)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	buf := e.buffers[symbol]
	e.mu.Unlock()
	if buf == nil {
		return nil, nil, fmt.Errorf("%w: %s has no fill buffer", market.ErrUnknownInstrument, symbol)
	}
	return inst, buf, nil
}

// Submit validates req, matches it against the book for req.Symbol and rests
// any remainder. Fills are settled and published in the order they occurred.
func (e *Exchange) Submit(req orderbook.OrderRequest) (Result, error) {
	inst, buf, err := e.instrument(req.Symbol)
	if err != nil {
		return Result{}, err
	}
	if e.accounts != nil && !e.accounts.Exists(req.Trader) {
		return Result{}, fmt.Errorf("%w: %s", account.ErrUnknownTrader, req.Trader)
	}

	var res Result
	err = inst.Do(func(book *orderbook.OrderBook) error {
		if err := inst.ValidateRequest(req); err != nil {
			return err
		}
		if stale := buf.drain(); len(stale) > 0 {
			e.logger.Warn("unattributed_fills",
				zap.String("symbol", req.Symbol),
				zap.Int("count", len(stale)))
			e.settle(stale)
		}
		res.OrderID, res.Rested = book.Submit(req)
		res.Fills = buf.drain()
		if res.Rested {
			res.Remaining = restingAmount(book, req, res.OrderID)
		}

		e.settle(res.Fills)
		if res.Rested {
			e.track(res.OrderID, location{symbol: req.Symbol, trader: req.Trader, side: req.Side, price: req.Price})
			if e.accounts != nil {
				if err := e.accounts.Reserve(req.Trader, req.Symbol, res.Remaining); err != nil {
					e.logger.Error("reserve_failed", zap.String("trader", string(req.Trader)), zap.Error(err))
				}
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Debug("order_rejected",
			zap.String("symbol", req.Symbol),
			zap.String("trader", string(req.Trader)),
			zap.Error(err))
		return Result{}, err
	}

	e.logger.Debug("order_processed",
		zap.String("symbol", req.Symbol),
		zap.String("trader", string(req.Trader)),
		zap.String("side", req.Side.String()),
		zap.Int64("price", int64(req.Price)),
		zap.Int64("amount", req.Amount),
		zap.Int("fills", len(res.Fills)),
		zap.Bool("rested", res.Rested))
	e.publish(Update{Symbol: req.Symbol, Fills: res.Fills})
	return res, nil
}

// settle hands fills to accounts and sinks and forgets makers that were
// fully consumed. Called with the instrument lock held.
func (e *Exchange) settle(fills []orderbook.Fill) {
	for _, f := range fills {
		if e.accounts != nil {
			e.accounts.OnFill(f)
		}
		e.sinks.OnFill(f)
		if f.MakerRemaining == 0 {
			e.forget(f.MakerOrderID)
		}
	}
}

// restingAmount reads the rested quantity back from the book. A fresh order
// sits at the back of its level.
func restingAmount(book *orderbook.OrderBook, req orderbook.OrderRequest, id orderbook.OrderID) int64 {
	orders := book.Orders(req.Side, req.Price)
	for i := len(orders) - 1; i >= 0; i-- {
		if orders[i].ID == id {
			return orders[i].Remaining
		}
	}
	return 0
}

func (e *Exchange) track(id orderbook.OrderID, loc location) {
	e.mu.Lock()
	e.open[id] = loc
	e.mu.Unlock()
}

func (e *Exchange) forget(id orderbook.OrderID) {
	e.mu.Lock()
	delete(e.open, id)
	e.mu.Unlock()
}

func (e *Exchange) locate(id orderbook.OrderID) (location, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	loc, ok := e.open[id]
	return loc, ok
}

// Cancel removes a resting order by id and releases its exposure.
func (e *Exchange) Cancel(id orderbook.OrderID) (*orderbook.Order, error) {
	loc, ok := e.locate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	inst, _, err := e.instrument(loc.symbol)
	if err != nil {
		return nil, err
	}

	var removed *orderbook.Order
	err = inst.Do(func(book *orderbook.OrderBook) error {
		o, ok := book.Cancel(id, loc.price, loc.side)
		if !ok {
			// filled between locate and lock
			return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		removed = o
		e.forget(id)
		if e.accounts != nil {
			if err := e.accounts.Release(o.Trader, o.Symbol, o.Remaining); err != nil {
				e.logger.Error("release_failed", zap.String("trader", string(o.Trader)), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("order_cancelled",
		zap.String("symbol", loc.symbol),
		zap.String("order_id", id.String()),
		zap.Int64("remaining", removed.Remaining))
	e.publish(Update{Symbol: loc.symbol})
	return removed, nil
}

// OpenOrders returns the number of resting orders the exchange can cancel.
func (e *Exchange) OpenOrders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// Snapshot returns the current book for symbol.
func (e *Exchange) Snapshot(symbol string) (orderbook.Snapshot, error) {
	inst, err := e.registry.Get(symbol)
	if err != nil {
		return orderbook.Snapshot{}, err
	}
	return inst.Snapshot(), nil
}

func (e *Exchange) publish(u Update) {
	e.mu.Lock()
	hooks := append([]func(Update){}, e.hooks...)
	e.mu.Unlock()
	for _, fn := range hooks {
		fn(u)
	}
}
