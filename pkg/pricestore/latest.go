package pricestore

import "sync"

// latestMap holds the single winning price per instrument id. It is used both
// for a batch's private staging area and for the committed store, so the
// timestamp-wins rule is applied identically in both places.
//
// Merges are atomic per key and lock-free: readers of one instrument are never
// blocked by writers of another.
type latestMap struct {
	m sync.Map // instrument id -> *Price
}

func newLatestMap() *latestMap {
	return &latestMap{}
}

// merge applies the timestamp-wins rule for p's instrument: p is stored if no
// price exists yet, or if p.AsOf is strictly after the existing price's AsOf.
// On a tie, or when p is older, the existing value is kept.
//
// Concurrent merges for the same instrument serialize through a
// compare-and-swap loop, so the final value is the one with the latest AsOf
// across all concurrently applied inputs and a newer value never regresses to
// an older one.
func (l *latestMap) merge(p *Price) {
	for {
		cur, loaded := l.m.Load(p.id)
		if !loaded {
			if _, raced := l.m.LoadOrStore(p.id, p); !raced {
				return
			}
			continue
		}
		if !p.asOf.After(cur.(*Price).asOf) {
			return
		}
		if l.m.CompareAndSwap(p.id, cur, p) {
			return
		}
	}
}

// get returns the current price for an instrument, if one is held.
func (l *latestMap) get(id string) (*Price, bool) {
	v, ok := l.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Price), true
}

// each calls fn for every held price. The iteration is a live view, not a
// snapshot; it is used to drain a detached staging area, which by then has no
// remaining writers.
func (l *latestMap) each(fn func(*Price)) {
	l.m.Range(func(_, v any) bool {
		fn(v.(*Price))
		return true
	})
}

// size counts the held prices.
func (l *latestMap) size() int {
	n := 0
	l.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
