package account

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// Store persists accounts in Pebble as JSON. Writes are serialised by the
// per-trader locks in Manager; Pebble itself is safe for concurrent use.
type Store struct {
	db *pebble.DB
}

// NewStore opens (or creates) a Pebble database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	cache := pebble.NewCache(16 << 20)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:        cache,
		MemTableSize: 8 << 20,
		MaxOpenFiles: 256,
		BytesPerSync: 512 << 10,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveAccount(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := s.db.Set(accountKey(acc.Trader), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// LoadAccount returns nil, nil if the trader has never been saved.
func (s *Store) LoadAccount(trader orderbook.TraderID) (*Account, error) {
	data, closer, err := s.db.Get(accountKey(trader))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	defer closer.Close()

	var acc Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	if acc.Assets == nil {
		acc.Assets = make(map[string]int64)
	}
	if acc.Outstanding == nil {
		acc.Outstanding = make(map[string]int64)
	}
	return &acc, nil
}

// LoadAll returns every persisted account in key order.
func (s *Store) LoadAll() ([]*Account, error) {
	prefix := []byte(prefixAccount)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	var out []*Account
	for iter.First(); iter.Valid(); iter.Next() {
		var acc Account
		if err := json.Unmarshal(iter.Value(), &acc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", iter.Key(), err)
		}
		out = append(out, &acc)
	}
	return out, iter.Error()
}
