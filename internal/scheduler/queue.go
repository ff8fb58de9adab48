package scheduler

import (
	"container/heap"
	"time"

	"github.com/jpalmerr/peek/internal/store"
)

// item is a queued record. seq breaks ties between equal due times so
// records keep their insertion order.
type item struct {
	rec   store.CheckRecord
	seq   uint64
	index int
}

// recordQueue is a min-heap of records keyed by NextCheckAt.
type recordQueue []*item

func (q recordQueue) Len() int { return len(q) }

func (q recordQueue) Less(i, j int) bool {
	a, b := q[i].rec.NextCheckAt, q[j].rec.NextCheckAt
	if a.Equal(b) {
		return q[i].seq < q[j].seq
	}
	return a.Before(b)
}

func (q recordQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *recordQueue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *recordQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

// dueQueue wraps recordQueue with sequence numbering.
type dueQueue struct {
	items recordQueue
	seq   uint64
}

func (d *dueQueue) push(rec store.CheckRecord) {
	d.seq++
	heap.Push(&d.items, &item{rec: rec, seq: d.seq})
}

// popDue removes and returns, in due order, every record whose NextCheckAt
// is strictly before now.
func (d *dueQueue) popDue(now time.Time) []store.CheckRecord {
	var due []store.CheckRecord
	for d.items.Len() > 0 && d.items[0].rec.NextCheckAt.Before(now) {
		due = append(due, heap.Pop(&d.items).(*item).rec)
	}
	return due
}

// peek returns the earliest NextCheckAt.
func (d *dueQueue) peek() (time.Time, bool) {
	if d.items.Len() == 0 {
		return time.Time{}, false
	}
	return d.items[0].rec.NextCheckAt, true
}

func (d *dueQueue) reset() {
	d.items = nil
	d.seq = 0
}

func (d *dueQueue) len() int {
	return d.items.Len()
}
