package exchange

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uhyunpark/ladderbook/pkg/app/core/account"
	"github.com/uhyunpark/ladderbook/pkg/app/core/market"
	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/ladderbook/pkg/util"
)

type fixture struct {
	ex       *Exchange
	accounts *account.Manager

	mu    sync.Mutex
	fills []orderbook.Fill
}

func newFixture(t *testing.T, traders ...orderbook.TraderID) *fixture {
	t.Helper()
	f := &fixture{accounts: account.NewManager(nil, nil)}
	for _, tr := range traders {
		if err := f.accounts.Register(tr, 10_000); err != nil {
			t.Fatal(err)
		}
	}
	rec := orderbook.FillSinkFunc(func(fl orderbook.Fill) {
		f.mu.Lock()
		f.fills = append(f.fills, fl)
		f.mu.Unlock()
	})
	f.ex = New(nil, f.accounts, nil, rec).
		WithBookOptions(orderbook.WithClock(util.NewManualClock(time.Unix(0, 0))))
	for _, sym := range []string{"AAPL", "JNJ"} {
		if _, err := f.ex.AddInstrument(sym, market.Params{MinPrice: 0, MaxPrice: 11}); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func order(trader orderbook.TraderID, side orderbook.Side, amount int64, price orderbook.Price, symbol string) orderbook.OrderRequest {
	return orderbook.OrderRequest{Trader: trader, Side: side, Amount: amount, Price: price, Symbol: symbol}
}

func TestSubmitSettlesAccounts(t *testing.T) {
	f := newFixture(t, "A", "B")

	res, err := f.ex.Submit(order("A", orderbook.Sell, 5, 7, "AAPL"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rested || res.Remaining != 5 || len(res.Fills) != 0 {
		t.Fatalf("resting sell result = %+v", res)
	}
	a, _ := f.accounts.Get("A")
	if a.OutstandingFor("AAPL") != 5 {
		t.Errorf("A outstanding = %d, want 5", a.OutstandingFor("AAPL"))
	}

	res, err = f.ex.Submit(order("B", orderbook.Buy, 3, 9, "AAPL"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Rested || res.Filled() != 3 || res.Remaining != 0 {
		t.Fatalf("crossing buy result = %+v", res)
	}
	if res.Fills[0].Price != 7 {
		t.Errorf("trade price = %d, want resting price 7", res.Fills[0].Price)
	}

	a, _ = f.accounts.Get("A")
	b, _ := f.accounts.Get("B")
	if a.CentsBalance != 10_021 || a.Asset("AAPL") != -3 || a.OutstandingFor("AAPL") != 2 {
		t.Errorf("seller = %+v", a)
	}
	if b.CentsBalance != 9_979 || b.Asset("AAPL") != 3 || b.OutstandingFor("AAPL") != 0 {
		t.Errorf("buyer = %+v", b)
	}
	if len(f.fills) != 1 {
		t.Errorf("downstream sink saw %d fills", len(f.fills))
	}
}

func TestSubmitRejections(t *testing.T) {
	f := newFixture(t, "A")

	tests := []struct {
		name string
		req  orderbook.OrderRequest
		want error
	}{
		{"unknown symbol", order("A", orderbook.Buy, 1, 5, "MSFT"), market.ErrUnknownInstrument},
		{"unknown trader", order("Z", orderbook.Buy, 1, 5, "AAPL"), account.ErrUnknownTrader},
		{"price above range", order("A", orderbook.Buy, 1, 11, "AAPL"), orderbook.ErrPriceOutOfRange},
		{"negative price", order("A", orderbook.Sell, 1, -1, "AAPL"), orderbook.ErrPriceOutOfRange},
		{"zero amount", order("A", orderbook.Buy, 0, 5, "AAPL"), orderbook.ErrNonPositiveQty},
		{"bad side", order("A", 0, 1, 5, "AAPL"), orderbook.ErrUnknownSide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ex.Submit(tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	snap, _ := f.ex.Snapshot("AAPL")
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Error("rejected orders must not touch the book")
	}
}

func TestPausedInstrumentRejects(t *testing.T) {
	f := newFixture(t, "A")
	if err := f.ex.Registry().UpdateStatus("JNJ", market.Paused); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ex.Submit(order("A", orderbook.Buy, 1, 5, "JNJ")); !errors.Is(err, market.ErrNotActive) {
		t.Errorf("error = %v, want ErrNotActive", err)
	}
	if _, err := f.ex.Submit(order("A", orderbook.Buy, 1, 5, "AAPL")); err != nil {
		t.Errorf("other instrument affected: %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, "A", "B")

	res, _ := f.ex.Submit(order("A", orderbook.Buy, 4, 6, "JNJ"))
	if f.ex.OpenOrders() != 1 {
		t.Fatalf("open orders = %d", f.ex.OpenOrders())
	}

	o, err := f.ex.Cancel(res.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Remaining != 4 || o.Trader != "A" {
		t.Errorf("cancelled order = %+v", o)
	}
	a, _ := f.accounts.Get("A")
	if a.OutstandingFor("JNJ") != 0 {
		t.Errorf("outstanding after cancel = %d", a.OutstandingFor("JNJ"))
	}
	if _, err := f.ex.Cancel(res.OrderID); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("second cancel error = %v", err)
	}
	snap, _ := f.ex.Snapshot("JNJ")
	if snap.BestBid != orderbook.NoBid || len(snap.Bids) != 0 {
		t.Error("book should be empty after cancel")
	}
}

func TestFilledOrderCannotBeCancelled(t *testing.T) {
	f := newFixture(t, "A", "B")

	res, _ := f.ex.Submit(order("A", orderbook.Sell, 2, 5, "AAPL"))
	f.ex.Submit(order("B", orderbook.Buy, 2, 5, "AAPL"))

	if f.ex.OpenOrders() != 0 {
		t.Errorf("open orders = %d, want 0", f.ex.OpenOrders())
	}
	if _, err := f.ex.Cancel(res.OrderID); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateHook(t *testing.T) {
	f := newFixture(t, "A", "B")

	var updates []Update
	f.ex.OnUpdate(func(u Update) { updates = append(updates, u) })

	res, _ := f.ex.Submit(order("A", orderbook.Sell, 1, 5, "AAPL"))
	f.ex.Submit(order("B", orderbook.Sell, 1, 6, "AAPL"))
	f.ex.Cancel(res.OrderID)

	if len(updates) != 3 {
		t.Fatalf("updates = %d, want 3", len(updates))
	}
	for _, u := range updates {
		if u.Symbol != "AAPL" {
			t.Errorf("update symbol = %q", u.Symbol)
		}
	}
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := newFixture(t, "A", "B")
	f.ex.sinks = append(f.ex.sinks, NewLogSink(zap.New(core)))

	f.ex.Submit(order("A", orderbook.Sell, 2, 5, "AAPL"))
	f.ex.Submit(order("B", orderbook.Buy, 2, 5, "AAPL"))

	entries := logs.FilterMessage("fill").All()
	if len(entries) != 1 {
		t.Fatalf("fill log entries = %d, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["buyer"] != "B" || ctx["seller"] != "A" || ctx["price"] != int64(5) {
		t.Errorf("log fields = %v", ctx)
	}
}

func TestConcurrentInstruments(t *testing.T) {
	f := newFixture(t, "A", "B")

	var wg sync.WaitGroup
	for _, sym := range []string{"AAPL", "JNJ"} {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f.ex.Submit(order("A", orderbook.Sell, 1, 5, sym))
				f.ex.Submit(order("B", orderbook.Buy, 1, 5, sym))
			}
		}()
	}
	wg.Wait()

	a, _ := f.accounts.Get("A")
	b, _ := f.accounts.Get("B")
	for _, sym := range []string{"AAPL", "JNJ"} {
		if a.Asset(sym) != -100 || b.Asset(sym) != 100 {
			t.Errorf("%s: A=%d B=%d", sym, a.Asset(sym), b.Asset(sym))
		}
		if a.OutstandingFor(sym) != 0 {
			t.Errorf("%s: A outstanding = %d", sym, a.OutstandingFor(sym))
		}
	}
	if f.ex.OpenOrders() != 0 {
		t.Errorf("open orders = %d", f.ex.OpenOrders())
	}
}

func TestSubmitIgnoresFillsFromDirectBookAccess(t *testing.T) {
	f := newFixture(t, "A", "B", "C")

	if _, err := f.ex.Submit(order("A", orderbook.Sell, 5, 7, "AAPL")); err != nil {
		t.Fatal(err)
	}

	// Trade against the book without going through the exchange.
	inst, err := f.ex.Registry().Get("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	inst.Do(func(book *orderbook.OrderBook) error {
		book.Submit(order("B", orderbook.Buy, 2, 7, "AAPL"))
		return nil
	})

	res, err := f.ex.Submit(order("C", orderbook.Buy, 1, 3, "AAPL"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rested || res.Remaining != 1 || len(res.Fills) != 0 {
		t.Fatalf("non-crossing result = %+v", res)
	}
	c, _ := f.accounts.Get("C")
	if c.OutstandingFor("AAPL") != 1 || c.Asset("AAPL") != 0 {
		t.Errorf("C = %+v", c)
	}

	// The stray fill is still settled, not lost.
	b, _ := f.accounts.Get("B")
	if b.Asset("AAPL") != 2 {
		t.Errorf("B assets = %d, want 2", b.Asset("AAPL"))
	}
}

func TestRemainingAfterPartialFill(t *testing.T) {
	f := newFixture(t, "A", "B")

	f.ex.Submit(order("A", orderbook.Sell, 2, 5, "AAPL"))
	res, err := f.ex.Submit(order("B", orderbook.Buy, 6, 5, "AAPL"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Rested || res.Filled() != 2 || res.Remaining != 4 {
		t.Fatalf("result = %+v", res)
	}
	b, _ := f.accounts.Get("B")
	if b.OutstandingFor("AAPL") != 4 {
		t.Errorf("B outstanding = %d, want 4", b.OutstandingFor("AAPL"))
	}
}

func TestNewLogSinkNilLogger(t *testing.T) {
	s := NewLogSink(nil)
	s.OnFill(orderbook.Fill{Symbol: "AAPL", Amount: 1, Price: 5})
}
