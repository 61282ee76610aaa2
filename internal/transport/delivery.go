// Package transport finds suppliers for consumers, charges fuel, and keeps the
// queue of in-flight deliveries that credit their destination on arrival.
package transport

import (
	"container/heap"

	"github.com/google/uuid"

	"github.com/talgya/gridworks/internal/catalog"
	"github.com/talgya/gridworks/internal/world"
)

// Delivery is one in-flight transfer. The source has already been debited.
type Delivery struct {
	ID       uuid.UUID           `json:"id"`
	From     world.HexCoord      `json:"from"`
	To       world.HexCoord      `json:"to"`
	Resource catalog.ResourceKey `json:"resource"`
	Amount   float64             `json:"amount"`
	Fuel     float64             `json:"fuel"`
	Deadline float64             `json:"deadline"` // game seconds
	seq      uint64
}

type deliveryHeap []*Delivery

func (h deliveryHeap) Len() int { return len(h) }

func (h deliveryHeap) Less(i, j int) bool {
	if h[i].Deadline != h[j].Deadline {
		return h[i].Deadline < h[j].Deadline
	}
	return h[i].seq < h[j].seq
}

func (h deliveryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *deliveryHeap) Push(x any) { *h = append(*h, x.(*Delivery)) }

func (h *deliveryHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return d
}

// Queue orders pending deliveries by deadline, then by enqueue order.
type Queue struct {
	h   deliveryHeap
	seq uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push enqueues d, assigning an ID when it has none.
func (q *Queue) Push(d *Delivery) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	q.seq++
	d.seq = q.seq
	heap.Push(&q.h, d)
}

// PollDue removes and returns every delivery whose deadline is at or before
// now, earliest first.
func (q *Queue) PollDue(now float64) []*Delivery {
	var due []*Delivery
	for q.h.Len() > 0 && q.h[0].Deadline <= now {
		due = append(due, heap.Pop(&q.h).(*Delivery))
	}
	return due
}

// Len returns the number of pending deliveries.
func (q *Queue) Len() int {
	return q.h.Len()
}

// Pending returns a copy of every pending delivery in arrival order.
func (q *Queue) Pending() []Delivery {
	cp := make(deliveryHeap, len(q.h))
	copy(cp, q.h)
	out := make([]Delivery, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, *heap.Pop(&cp).(*Delivery))
	}
	return out
}

// InFlight sums pending amounts per destination and resource.
func (q *Queue) InFlight() map[world.HexCoord]catalog.Amounts {
	out := make(map[world.HexCoord]catalog.Amounts)
	for _, d := range q.h {
		if out[d.To] == nil {
			out[d.To] = make(catalog.Amounts)
		}
		out[d.To][d.Resource] += d.Amount
	}
	return out
}
