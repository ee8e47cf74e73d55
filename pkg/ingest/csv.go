// Package ingest loads order requests from CSV files.
//
// The expected header is
//
//	Amount,Price,OrderType,TraderId,Symbol
//
// Columns may appear in any order. OrderType is Buy or Sell.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

var Columns = []string{"Amount", "Price", "OrderType", "TraderId", "Symbol"}

var ErrBadHeader = errors.New("bad csv header")

// SubmitFunc receives each parsed request in file order.
type SubmitFunc func(orderbook.OrderRequest) error

// LineError reports the 1-based file line a failure happened on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// LoadFile opens path and feeds its records to submit.
func LoadFile(path string, submit SubmitFunc) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open orders file: %w", err)
	}
	defer f.Close()
	return Load(f, submit)
}

// Load parses records one at a time and hands each to submit before reading
// the next. It stops at the first malformed record or submit error and
// returns how many records were submitted successfully.
func Load(r io.Reader, submit SubmitFunc) (int, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true

	header, err := rd.Read()
	if err == io.EOF {
		return 0, &LineError{Line: 1, Err: fmt.Errorf("%w: empty file", ErrBadHeader)}
	}
	if err != nil {
		return 0, &LineError{Line: 1, Err: err}
	}
	idx, err := columnIndex(header)
	if err != nil {
		return 0, &LineError{Line: 1, Err: err}
	}

	n := 0
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return n, &LineError{Line: line, Err: err}
		}
		line, _ := rd.FieldPos(0)
		req, err := parseRecord(rec, idx)
		if err != nil {
			return n, &LineError{Line: line, Err: err}
		}
		if err := submit(req); err != nil {
			return n, &LineError{Line: line, Err: err}
		}
		n++
	}
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadHeader, c)
		}
	}
	return idx, nil
}

func parseRecord(rec []string, idx map[string]int) (orderbook.OrderRequest, error) {
	field := func(name string) string { return strings.TrimSpace(rec[idx[name]]) }

	amount, err := strconv.ParseInt(field("Amount"), 10, 64)
	if err != nil {
		return orderbook.OrderRequest{}, fmt.Errorf("amount: %w", err)
	}
	price, err := strconv.ParseInt(field("Price"), 10, 64)
	if err != nil {
		return orderbook.OrderRequest{}, fmt.Errorf("price: %w", err)
	}
	side, err := orderbook.ParseSide(field("OrderType"))
	if err != nil {
		return orderbook.OrderRequest{}, err
	}
	trader := field("TraderId")
	if trader == "" {
		return orderbook.OrderRequest{}, fmt.Errorf("empty TraderId")
	}
	symbol := field("Symbol")
	if symbol == "" {
		return orderbook.OrderRequest{}, fmt.Errorf("empty Symbol")
	}

	return orderbook.OrderRequest{
		Side:   side,
		Amount: amount,
		Price:  orderbook.Price(price),
		Trader: orderbook.TraderID(trader),
		Symbol: symbol,
	}, nil
}
