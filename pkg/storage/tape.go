package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

var keyLastSeq = []byte("meta:last_seq")

// Tape is an append-only trade tape in Pebble. It implements
// orderbook.FillSink, so it can be plugged in next to the account manager.
type Tape struct {
	mu     sync.Mutex
	db     *pebble.DB
	seq    uint64
	logger *zap.Logger
}

// OpenTape opens (or creates) a tape at path and restores its sequence.
func OpenTape(path string, logger *zap.Logger) (*Tape, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open tape %s: %w", path, err)
	}

	t := &Tape{db: db, logger: logger}
	val, closer, err := db.Get(keyLastSeq)
	switch {
	case errors.Is(err, pebble.ErrNotFound):
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("read tape sequence: %w", err)
	default:
		t.seq = binary.BigEndian.Uint64(val)
		closer.Close()
	}
	return t, nil
}

func (t *Tape) Close() error { return t.db.Close() }

// Append writes f and returns its sequence number.
func (t *Tape) Append(f orderbook.Fill) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq := t.seq + 1
	data, err := encodeRecord(recordFromFill(seq, f))
	if err != nil {
		return 0, fmt.Errorf("encode fill: %w", err)
	}
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)

	b := t.db.NewBatch()
	defer b.Close()
	if err := b.Set(fillKey(f.Symbol, seq), data, nil); err != nil {
		return 0, err
	}
	if err := b.Set(keyLastSeq, seqBuf[:], nil); err != nil {
		return 0, err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return 0, fmt.Errorf("commit fill: %w", err)
	}
	t.seq = seq
	return seq, nil
}

// OnFill implements orderbook.FillSink.
func (t *Tape) OnFill(f orderbook.Fill) {
	if _, err := t.Append(f); err != nil {
		t.logger.Error("tape_append_failed", zap.String("symbol", f.Symbol), zap.Error(err))
	}
}

// LastSeq returns the sequence of the newest fill, 0 if the tape is empty.
func (t *Tape) LastSeq() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Recent returns up to limit fills for symbol, newest first.
func (t *Tape) Recent(symbol string, limit int) ([]TapeRecord, error) {
	prefix := fillPrefix(symbol)
	iter, err := t.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	var out []TapeRecord
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		r, err := decodeRecord(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode fill %d: %w", seqFromKey(iter.Key()), err)
		}
		out = append(out, r)
	}
	return out, iter.Error()
}

// Count returns how many fills are stored for symbol.
func (t *Tape) Count(symbol string) (int, error) {
	prefix := fillPrefix(symbol)
	iter, err := t.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

var _ orderbook.FillSink = (*Tape)(nil)
