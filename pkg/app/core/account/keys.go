package account

import (
	"fmt"

	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// Pebble key schema. Prefix-based so a range scan returns every account.
const prefixAccount = "acc:"

// accountKey returns "acc:{trader}".
func accountKey(trader orderbook.TraderID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, trader))
}

// keyUpperBound returns the smallest key greater than every key with prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}
