package orderbook

import "testing"

func ladders(min, max Price) map[string]Ladder {
	return map[string]Ladder{
		"dense":  NewDenseLadder(min, max),
		"sparse": NewSparseLadder(min, max),
	}
}

func TestLadderScan(t *testing.T) {
	for name, l := range ladders(10, 20) {
		t.Run(name, func(t *testing.T) {
			if _, ok := l.HighestAtOrBelow(19); ok {
				t.Error("empty ladder should have no highest level")
			}
			l.Insert(&Order{Price: 12, Remaining: 1})
			l.Insert(&Order{Price: 17, Remaining: 1})

			tests := []struct {
				name   string
				got    func() (Price, bool)
				want   Price
				wantOK bool
			}{
				{"highest at or below top", func() (Price, bool) { return l.HighestAtOrBelow(19) }, 17, true},
				{"highest above range clamps", func() (Price, bool) { return l.HighestAtOrBelow(500) }, 17, true},
				{"highest between", func() (Price, bool) { return l.HighestAtOrBelow(16) }, 12, true},
				{"highest below all", func() (Price, bool) { return l.HighestAtOrBelow(11) }, 0, false},
				{"lowest from bottom", func() (Price, bool) { return l.LowestAtOrAbove(0) }, 12, true},
				{"lowest exact", func() (Price, bool) { return l.LowestAtOrAbove(17) }, 17, true},
				{"lowest above all", func() (Price, bool) { return l.LowestAtOrAbove(18) }, 0, false},
			}
			for _, tt := range tests {
				p, ok := tt.got()
				if ok != tt.wantOK || (ok && p != tt.want) {
					t.Errorf("%s: got %d,%v want %d,%v", tt.name, p, ok, tt.want, tt.wantOK)
				}
			}
		})
	}
}

func TestLadderFIFOAndRelease(t *testing.T) {
	for name, l := range ladders(0, 5) {
		t.Run(name, func(t *testing.T) {
			a := &Order{Price: 3, Remaining: 1, Trader: "a"}
			b := &Order{Price: 3, Remaining: 2, Trader: "b"}
			l.Insert(a)
			l.Insert(b)

			q := l.Level(3)
			if q.Len() != 2 || q.Front() != a || q.At(1) != b {
				t.Fatalf("queue out of insertion order")
			}
			if q.Total() != 3 {
				t.Errorf("total = %d, want 3", q.Total())
			}
			q.RemoveAt(0)
			q.RemoveAt(0)
			if !q.IsEmpty() || q.Front() != nil {
				t.Fatal("queue should be empty")
			}
			l.Release(3)

			visited := 0
			l.Ascend(func(*PriceLevelQueue) bool { visited++; return true })
			l.Descend(func(*PriceLevelQueue) bool { visited++; return true })
			if visited != 0 {
				t.Errorf("empty levels visited %d times", visited)
			}
		})
	}
}

func TestDenseLadderKeepsEmptyLevels(t *testing.T) {
	l := NewDenseLadder(0, 3)
	l.Insert(&Order{Price: 1, Remaining: 1})
	q := l.Level(1)
	q.RemoveAt(0)
	l.Release(1)
	if l.Level(1) != q {
		t.Error("dense level should stay in place after emptying")
	}
	if l.Level(3) != nil || l.Level(-1) != nil {
		t.Error("out-of-range lookups should return nil")
	}
}

func TestSparseLadderDropsEmptyLevels(t *testing.T) {
	l := NewSparseLadder(0, 1_000_000_000)
	l.Insert(&Order{Price: 999_999_999, Remaining: 1})
	q := l.Level(999_999_999)
	q.RemoveAt(0)
	l.Release(999_999_999)
	if l.Level(999_999_999) != nil {
		t.Error("sparse level should be dropped once empty")
	}
}

func TestLadderInsertOutOfRangePanics(t *testing.T) {
	for name, l := range ladders(5, 10) {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			l.Insert(&Order{Price: 10, Remaining: 1})
		})
	}
}

func TestInvalidBoundsPanics(t *testing.T) {
	ctors := map[string]func(){
		"dense":  func() { NewDenseLadder(5, 5) },
		"sparse": func() { NewSparseLadder(-1, 5) },
	}
	for name, ctor := range ctors {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			ctor()
		})
	}
}
