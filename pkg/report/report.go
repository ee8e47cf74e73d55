// Package report renders books and accounts as plain text.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/uhyunpark/ladderbook/pkg/app/core/account"
	"github.com/uhyunpark/ladderbook/pkg/app/core/orderbook"
)

// MaxLadderRows bounds how many prices RenderLadder prints one by one.
// Wider books only print their non-empty levels.
const MaxLadderRows = 512

// RenderLadder prints one line per price from MinPrice up, of the form
//
//	$p: SSSBB
//
// with one S per lot offered and one B per lot bid at p.
func RenderLadder(w io.Writer, snap orderbook.Snapshot) error {
	asks := make(map[orderbook.Price]int64, len(snap.Asks))
	for _, l := range snap.Asks {
		asks[l.Price] = l.Total
	}
	bids := make(map[orderbook.Price]int64, len(snap.Bids))
	for _, l := range snap.Bids {
		bids[l.Price] = l.Total
	}

	line := func(p orderbook.Price) error {
		_, err := fmt.Fprintf(w, "$%d: %s%s\n", p,
			strings.Repeat("S", int(asks[p])),
			strings.Repeat("B", int(bids[p])))
		return err
	}

	if snap.MaxPrice-snap.MinPrice <= MaxLadderRows {
		for p := snap.MinPrice; p < snap.MaxPrice; p++ {
			if err := line(p); err != nil {
				return err
			}
		}
		return nil
	}

	for _, p := range occupied(snap) {
		if err := line(p); err != nil {
			return err
		}
	}
	return nil
}

// occupied merges the bid and ask prices into one ascending list.
func occupied(snap orderbook.Snapshot) []orderbook.Price {
	out := make([]orderbook.Price, 0, len(snap.Bids)+len(snap.Asks))
	i, j := len(snap.Bids)-1, 0
	for i >= 0 || j < len(snap.Asks) {
		switch {
		case j >= len(snap.Asks) || (i >= 0 && snap.Bids[i].Price < snap.Asks[j].Price):
			out = append(out, snap.Bids[i].Price)
			i--
		case i < 0 || snap.Asks[j].Price < snap.Bids[i].Price:
			out = append(out, snap.Asks[j].Price)
			j++
		default:
			out = append(out, snap.Asks[j].Price)
			i--
			j++
		}
	}
	return out
}

// RenderSummary prints best prices and side totals for snap.
func RenderSummary(w io.Writer, snap orderbook.Snapshot) error {
	_, err := fmt.Fprintf(w, "%s bid=%s ask=%s bid_qty=%d ask_qty=%d levels=%d/%d\n",
		snap.Symbol,
		priceOrDash(snap.BestBid, snap.BestBid != orderbook.NoBid),
		priceOrDash(snap.BestAsk, snap.BestAsk != orderbook.NoAsk),
		snap.BidTotal(), snap.AskTotal(),
		len(snap.Bids), len(snap.Asks))
	return err
}

func priceOrDash(p orderbook.Price, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("$%d", p)
}

// RenderAccounts prints one aligned row per account.
func RenderAccounts(w io.Writer, accounts []*account.Account, symbols []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "TRADER\tCENTS\tTRADES\tVOLUME")
	for _, s := range symbols {
		fmt.Fprintf(tw, "\t%s\t%s_OPEN", s, s)
	}
	fmt.Fprintln(tw)
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d", a.Trader, a.CentsBalance, a.TradeCount, a.Volume)
		for _, s := range symbols {
			fmt.Fprintf(tw, "\t%d\t%d", a.Asset(s), a.OutstandingFor(s))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
