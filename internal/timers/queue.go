// Package timers is the logical timer queue for deferred work: offer expiry,
// crop harvest, livestock maturation and recurring production. Timers carry
// only a kind and an entity reference; whoever pops them re-enters the normal
// single-writer path and re-checks entity status before mutating.
package timers

import (
	"container/heap"
	"time"
)

// Kind identifies what a timer does when it fires.
type Kind string

const (
	KindOfferExpiry Kind = "offer_expiry"
	KindHarvest     Kind = "harvest"
	KindMature      Kind = "mature"
	KindProduce     Kind = "produce"
)

// Timer is one pending deferred operation.
type Timer struct {
	Due  time.Time
	Kind Kind
	Ref  string
	seq  uint64
}

// Scheduler is the narrow interface components use to defer work.
type Scheduler interface {
	Schedule(due time.Time, kind Kind, ref string)
}

// Queue orders timers by due time, then insertion order. Not safe for
// concurrent use; the owning simulation serializes access.
type Queue struct {
	h   timerHeap
	seq uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Schedule adds a timer due at due.
func (q *Queue) Schedule(due time.Time, kind Kind, ref string) {
	q.seq++
	heap.Push(&q.h, Timer{Due: due, Kind: kind, Ref: ref, seq: q.seq})
}

// PopDue removes and returns every timer due at or before now, in order.
func (q *Queue) PopDue(now time.Time) []Timer {
	var out []Timer
	for q.h.Len() > 0 && !q.h[0].Due.After(now) {
		out = append(out, heap.Pop(&q.h).(Timer))
	}
	return out
}

// Next returns the earliest due time, if any.
func (q *Queue) Next() (time.Time, bool) {
	if q.h.Len() == 0 {
		return time.Time{}, false
	}
	return q.h[0].Due, true
}

// Len reports pending timers.
func (q *Queue) Len() int {
	return q.h.Len()
}

// Rearm returns the due time for a timer restored after a reload: the
// remaining delay is max(0, due-now), never the original full duration.
func Rearm(due, now time.Time) time.Time {
	remaining := due.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return now.Add(remaining)
}

type timerHeap []Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].Due.Equal(h[j].Due) {
		return h[i].seq < h[j].seq
	}
	return h[i].Due.Before(h[j].Due)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(Timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
