package account

import (
	"fmt"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// Account tracks one trader's cash, holdings and resting-order exposure.
// All balances are integers: cents for cash, lots for assets.
type Account struct {
	Trader orderbook.TraderID `json:"trader"`

	CentsBalance int64 `json:"cents_balance"`

	// Assets is the position per symbol (negative means short).
	Assets map[string]int64 `json:"assets"`

	// Outstanding is the resting, unfilled order quantity per symbol.
	Outstanding map[string]int64 `json:"outstanding"`

	TradeCount int64 `json:"trade_count"`
	Volume     int64 `json:"volume"` // cents traded, both sides
}

func NewAccount(trader orderbook.TraderID) *Account {
	return &Account{
		Trader:      trader,
		Assets:      make(map[string]int64),
		Outstanding: make(map[string]int64),
	}
}

// Clone returns a deep copy safe to hand out of the manager.
func (a *Account) Clone() *Account {
	c := *a
	c.Assets = make(map[string]int64, len(a.Assets))
	for k, v := range a.Assets {
		c.Assets[k] = v
	}
	c.Outstanding = make(map[string]int64, len(a.Outstanding))
	for k, v := range a.Outstanding {
		c.Outstanding[k] = v
	}
	return &c
}

// Asset returns the holding for symbol.
func (a *Account) Asset(symbol string) int64 {
	return a.Assets[symbol]
}

// OutstandingFor returns resting quantity for symbol.
func (a *Account) OutstandingFor(symbol string) int64 {
	return a.Outstanding[symbol]
}

// Validate checks account invariants.
func (a *Account) Validate() error {
	if a.Trader == "" {
		return fmt.Errorf("account without trader id")
	}
	for symbol, qty := range a.Outstanding {
		if qty < 0 {
			return fmt.Errorf("negative outstanding for %s: %d", symbol, qty)
		}
	}
	if a.TradeCount < 0 || a.Volume < 0 {
		return fmt.Errorf("negative statistics: trades=%d volume=%d", a.TradeCount, a.Volume)
	}
	return nil
}

func (a *Account) settleBuy(symbol string, amount int64, price orderbook.Price) {
	notional := amount * int64(price)
	a.Assets[symbol] += amount
	a.CentsBalance -= notional
	a.TradeCount++
	a.Volume += notional
}

func (a *Account) settleSell(symbol string, amount int64, price orderbook.Price) {
	notional := amount * int64(price)
	a.Assets[symbol] -= amount
	a.CentsBalance += notional
	a.TradeCount++
	a.Volume += notional
}

func (a *Account) reduceOutstanding(symbol string, amount int64) {
	left := a.Outstanding[symbol] - amount
	if left <= 0 {
		delete(a.Outstanding, symbol)
		return
	}
	a.Outstanding[symbol] = left
}
