package account

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

var ErrUnknownTrader = errors.New("unknown trader")

// entry is one independently lockable account record.
type entry struct {
	mu  sync.Mutex
	acc *Account
}

// Manager owns every trader account. Each account has its own lock, so
// settling fills for different traders proceeds in parallel; the manager
// lock only guards the trader map.
//
// Manager implements orderbook.FillSink.
type Manager struct {
	mu      sync.RWMutex
	entries map[orderbook.TraderID]*entry

	store  *Store // optional Pebble persistence
	logger *zap.Logger
}

// NewManager creates an in-memory manager. store may be nil.
func NewManager(store *Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		entries: make(map[orderbook.TraderID]*entry),
		store:   store,
		logger:  logger,
	}
}

// Register adds a trader, loading its last persisted state if a store is set.
// initialCents only applies to traders not found in the store.
func (m *Manager) Register(trader orderbook.TraderID, initialCents int64) error {
	if trader == "" {
		return fmt.Errorf("trader id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[trader]; exists {
		return fmt.Errorf("trader %s already registered", trader)
	}

	var acc *Account
	if m.store != nil {
		loaded, err := m.store.LoadAccount(trader)
		if err != nil {
			return fmt.Errorf("load account %s: %w", trader, err)
		}
		acc = loaded
	}
	if acc == nil {
		acc = NewAccount(trader)
		acc.CentsBalance = initialCents
		if err := m.persist(acc); err != nil {
			return err
		}
	}
	m.entries[trader] = &entry{acc: acc}
	return nil
}

func (m *Manager) lookup(trader orderbook.TraderID) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[trader]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrader, trader)
	}
	return e, nil
}

// update runs fn on the trader's account under its lock and persists the result.
func (m *Manager) update(trader orderbook.TraderID, fn func(*Account)) error {
	e, err := m.lookup(trader)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.acc)
	return m.persist(e.acc)
}

func (m *Manager) persist(acc *Account) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveAccount(acc)
}

// Get returns a copy of the trader's account.
func (m *Manager) Get(trader orderbook.TraderID) (*Account, error) {
	e, err := m.lookup(trader)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acc.Clone(), nil
}

// Exists reports whether trader is registered.
func (m *Manager) Exists(trader orderbook.TraderID) bool {
	_, err := m.lookup(trader)
	return err == nil
}

// List returns copies of all accounts sorted by trader id.
func (m *Manager) List() []*Account {
	m.mu.RLock()
	traders := make([]orderbook.TraderID, 0, len(m.entries))
	for t := range m.entries {
		traders = append(traders, t)
	}
	m.mu.RUnlock()

	sort.Slice(traders, func(i, j int) bool { return traders[i] < traders[j] })
	out := make([]*Account, 0, len(traders))
	for _, t := range traders {
		if acc, err := m.Get(t); err == nil {
			out = append(out, acc)
		}
	}
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Deposit credits cents to the trader.
func (m *Manager) Deposit(trader orderbook.TraderID, cents int64) error {
	if cents <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", cents)
	}
	return m.update(trader, func(a *Account) { a.CentsBalance += cents })
}

// Reserve records qty of newly resting liquidity for trader on symbol.
func (m *Manager) Reserve(trader orderbook.TraderID, symbol string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("reserve amount must be positive: %d", qty)
	}
	return m.update(trader, func(a *Account) { a.Outstanding[symbol] += qty })
}

// Release removes qty of resting liquidity, e.g. after a cancel.
func (m *Manager) Release(trader orderbook.TraderID, symbol string, qty int64) error {
	if qty < 0 {
		return fmt.Errorf("release amount cannot be negative: %d", qty)
	}
	if qty == 0 {
		return nil
	}
	return m.update(trader, func(a *Account) { a.reduceOutstanding(symbol, qty) })
}

// ApplyFill settles f on both counterparties. The two accounts are locked one
// after the other, never together. The resting side's exposure shrinks by the
// traded amount, which also holds when buyer and seller are the same trader.
func (m *Manager) ApplyFill(f orderbook.Fill) error {
	makerBought := f.TakerSide == orderbook.Sell

	err := m.update(f.Buyer, func(a *Account) {
		a.settleBuy(f.Symbol, f.Amount, f.Price)
		if makerBought {
			a.reduceOutstanding(f.Symbol, f.Amount)
		}
	})
	if err != nil {
		return fmt.Errorf("settle buyer: %w", err)
	}

	err = m.update(f.Seller, func(a *Account) {
		a.settleSell(f.Symbol, f.Amount, f.Price)
		if !makerBought {
			a.reduceOutstanding(f.Symbol, f.Amount)
		}
	})
	if err != nil {
		return fmt.Errorf("settle seller: %w", err)
	}
	return nil
}

// OnFill implements orderbook.FillSink. Settlement errors are logged; the
// trade has already happened in the book.
func (m *Manager) OnFill(f orderbook.Fill) {
	if err := m.ApplyFill(f); err != nil {
		m.logger.Error("fill_settlement_failed",
			zap.String("symbol", f.Symbol),
			zap.String("buyer", string(f.Buyer)),
			zap.String("seller", string(f.Seller)),
			zap.Int64("amount", f.Amount),
			zap.Int64("price", int64(f.Price)),
			zap.Error(err))
	}
}

// Close closes the underlying store, if any.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}

var _ orderbook.FillSink = (*Manager)(nil)
