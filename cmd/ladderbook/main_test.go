package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/params"
)

const sampleOrders = `Amount,Price,OrderType,TraderId,Symbol
5,7,Sell,Columbia_A,AAPL
3,8,Sell,Columbia_A,AAPL
2,4,Buy,Columbia_B,AAPL
4,9,Buy,Columbia_B,AAPL
1,3,Sell,Columbia_B,AAPL
2,6,Buy,Columbia_A,JNJ
2,6,Sell,Columbia_B,JNJ
3,5,Buy,Columbia_A,JNJ
`

func testConfig(t *testing.T, orders string) params.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(path, []byte(orders), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := params.Default()
	cfg.Node.OrdersCSV = path
	cfg.Node.DataDir = filepath.Join(dir, "data")
	return cfg
}

func accountRow(out, trader string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, trader+" ") {
			return strings.Join(strings.Fields(line), " ")
		}
	}
	return ""
}

func TestRun(t *testing.T) {
	cfg := testConfig(t, sampleOrders)

	var out bytes.Buffer
	if err := run(context.Background(), cfg, zap.NewNop(), &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()

	for _, want := range []string{
		"AAPL bid=$4 ask=$7 bid_qty=1 ask_qty=4 levels=1/2\n",
		"$3: \n$4: B\n$5: \n$6: \n$7: S\n$8: SSS\n$9: \n",
		"JNJ bid=$5 ask=- bid_qty=3 ask_qty=0 levels=1/0\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if row := accountRow(got, "Columbia_A"); row != "Columbia_A 16 2 40 -4 4 2 3" {
		t.Errorf("Columbia_A row = %q", row)
	}
	if row := accountRow(got, "Columbia_B"); row != "Columbia_B -16 4 48 4 1 -2 0" {
		t.Errorf("Columbia_B row = %q", row)
	}
}

func TestRunPersistsAccounts(t *testing.T) {
	cfg := testConfig(t, sampleOrders)

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		if err := run(context.Background(), cfg, zap.NewNop(), &out); err != nil {
			t.Fatal(err)
		}
		if i == 1 {
			if row := accountRow(out.String(), "Columbia_A"); !strings.HasPrefix(row, "Columbia_A 32 4 80 ") {
				t.Errorf("second run row = %q", row)
			}
		}
	}
}

func TestRunIngestFailure(t *testing.T) {
	cfg := testConfig(t, "Amount,Price,OrderType,TraderId,Symbol\n1,2,Buy,Columbia_A,AAPL\n1,11,Buy,Columbia_A,AAPL\n")

	err := run(context.Background(), cfg, zap.NewNop(), &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error = %v, want failure on line 3", err)
	}
}

func TestRunMissingFile(t *testing.T) {
	cfg := params.Default()
	cfg.Node.OrdersCSV = filepath.Join(t.TempDir(), "missing.csv")
	if err := run(context.Background(), cfg, zap.NewNop(), &bytes.Buffer{}); err == nil {
		t.Error("missing orders file should fail")
	}
}
