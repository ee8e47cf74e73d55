package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// Key layout: "fill:{len(symbol)}:{symbol}:" + 8-byte big-endian sequence, so
// keys for one symbol sort in tape order and a reverse scan yields the newest
// fills. The length keeps one symbol's prefix from matching another's.
const prefixFill = "fill:"

func fillPrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", prefixFill, len(symbol), symbol))
}

func fillKey(symbol string, seq uint64) []byte {
	p := fillPrefix(symbol)
	k := make([]byte, len(p)+8)
	copy(k, p)
	binary.BigEndian.PutUint64(k[len(p):], seq)
	return k
}

func seqFromKey(k []byte) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[len(k)-8:])
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// TapeRecord is the persisted form of a fill.
type TapeRecord struct {
	Seq          uint64    `json:"seq"`
	Symbol       string    `json:"symbol"`
	Buyer        string    `json:"buyer"`
	Seller       string    `json:"seller"`
	Amount       int64     `json:"amount"`
	Price        int64     `json:"price"`
	TakerSide    string    `json:"taker_side"`
	MakerOrderID string    `json:"maker_order_id"`
	Timestamp    time.Time `json:"timestamp"`
}

func recordFromFill(seq uint64, f orderbook.Fill) TapeRecord {
	return TapeRecord{
		Seq:          seq,
		Symbol:       f.Symbol,
		Buyer:        string(f.Buyer),
		Seller:       string(f.Seller),
		Amount:       f.Amount,
		Price:        int64(f.Price),
		TakerSide:    f.TakerSide.String(),
		MakerOrderID: f.MakerOrderID.String(),
		Timestamp:    f.Timestamp,
	}
}

func encodeRecord(r TapeRecord) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRecord(b []byte) (TapeRecord, error) {
	var r TapeRecord
	err := json.Unmarshal(b, &r)
	return r, err
}
