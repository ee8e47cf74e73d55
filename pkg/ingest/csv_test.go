package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

func collect(reqs *[]orderbook.OrderRequest) SubmitFunc {
	return func(r orderbook.OrderRequest) error {
		*reqs = append(*reqs, r)
		return nil
	}
}

func TestLoad(t *testing.T) {
	data := `Amount,Price,OrderType,TraderId,Symbol
5,7,Sell,Columbia_A,AAPL
3, 9,Buy,Columbia_B,AAPL
1,2,sell,Columbia_B,JNJ
`
	var got []orderbook.OrderRequest
	n, err := Load(strings.NewReader(data), collect(&got))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	want := orderbook.OrderRequest{Side: orderbook.Buy, Amount: 3, Price: 9, Trader: "Columbia_B", Symbol: "AAPL"}
	if got[1] != want {
		t.Errorf("record 2 = %+v, want %+v", got[1], want)
	}
	if got[2].Side != orderbook.Sell || got[2].Symbol != "JNJ" {
		t.Errorf("record 3 = %+v", got[2])
	}
}

func TestLoadColumnOrder(t *testing.T) {
	data := "Symbol,TraderId,OrderType,Price,Amount\nAAPL,t,Buy,4,2\n"
	var got []orderbook.OrderRequest
	if _, err := Load(strings.NewReader(data), collect(&got)); err != nil {
		t.Fatal(err)
	}
	if got[0].Amount != 2 || got[0].Price != 4 {
		t.Errorf("record = %+v", got[0])
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantLine int
		wantN    int
	}{
		{"empty", "", 1, 0},
		{"missing column", "Amount,Price,OrderType,TraderId\n1,2,Buy,t\n", 1, 0},
		{"bad amount", "Amount,Price,OrderType,TraderId,Symbol\n1,2,Buy,t,AAPL\nx,2,Buy,t,AAPL\n", 3, 1},
		{"bad side", "Amount,Price,OrderType,TraderId,Symbol\n1,2,Hold,t,AAPL\n", 2, 0},
		{"field count", "Amount,Price,OrderType,TraderId,Symbol\n1,2,Buy,t,AAPL\n1,2,Buy\n", 3, 1},
		{"empty trader", "Amount,Price,OrderType,TraderId,Symbol\n1,2,Buy,,AAPL\n", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []orderbook.OrderRequest
			n, err := Load(strings.NewReader(tt.data), collect(&got))
			var le *LineError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v, want *LineError", err)
			}
			if le.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", le.Line, tt.wantLine)
			}
			if n != tt.wantN || len(got) != tt.wantN {
				t.Errorf("submitted = %d/%d, want %d", n, len(got), tt.wantN)
			}
		})
	}
}

func TestLoadStopsOnSubmitError(t *testing.T) {
	data := "Amount,Price,OrderType,TraderId,Symbol\n1,2,Buy,t,AAPL\n1,99,Buy,t,AAPL\n1,3,Buy,t,AAPL\n"
	rejected := orderbook.ErrPriceOutOfRange
	calls := 0
	n, err := Load(strings.NewReader(data), func(r orderbook.OrderRequest) error {
		calls++
		if r.Price > 10 {
			return rejected
		}
		return nil
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("error = %v", err)
	}
	if n != 1 || calls != 2 {
		t.Errorf("n = %d calls = %d", n, calls)
	}
	if !strings.HasPrefix(err.Error(), "line 3:") {
		t.Errorf("error text = %q", err.Error())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	if err := os.WriteFile(path, []byte("Amount,Price,OrderType,TraderId,Symbol\n1,2,Buy,t,AAPL\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var got []orderbook.OrderRequest
	if n, err := LoadFile(path, collect(&got)); err != nil || n != 1 {
		t.Fatalf("LoadFile = %d, %v", n, err)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"), collect(&got)); err == nil {
		t.Error("missing file should fail")
	}
}
