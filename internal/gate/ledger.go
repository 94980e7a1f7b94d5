package gate

import "time"

// ledger is a fixed-capacity ring of admission timestamps in ascending order.
//
// ledger is not safe for concurrent use; the Gate guards it with its mutex.
type ledger struct {
	entries []time.Time
	head    int // index of the oldest entry
	size    int
}

func newLedger(capacity int) *ledger {
	return &ledger{entries: make([]time.Time, capacity)}
}

func (l *ledger) len() int {
	return l.size
}

func (l *ledger) full() bool {
	return l.size == len(l.entries)
}

// oldest returns the earliest entry. It must not be called on an empty ledger.
func (l *ledger) oldest() time.Time {
	return l.entries[l.head]
}

func (l *ledger) newest() time.Time {
	return l.entries[(l.head+l.size-1)%len(l.entries)]
}

// push appends t. Callers check full() first.
// A timestamp earlier than the newest entry is clamped so the ring stays sorted.
func (l *ledger) push(t time.Time) {
	if l.full() {
		panic("gate: push into full ledger")
	}
	if l.size > 0 {
		if newest := l.newest(); t.Before(newest) {
			t = newest
		}
	}
	l.entries[(l.head+l.size)%len(l.entries)] = t
	l.size++
}

// prune drops every entry at or before cutoff and returns how many went.
func (l *ledger) prune(cutoff time.Time) int {
	dropped := 0
	for l.size > 0 && !l.entries[l.head].After(cutoff) {
		l.entries[l.head] = time.Time{}
		l.head = (l.head + 1) % len(l.entries)
		l.size--
		dropped++
	}
	if l.size == 0 {
		l.head = 0
	}
	return dropped
}
