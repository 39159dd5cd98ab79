package stream

import "time"

// Request priorities. Lower values dequeue first.
const (
	PriorityUrgent  = 1 // user pressed play; bypasses the queue entirely
	PriorityNext    = 2 // queued as likely-next track
	PriorityVisible = 3 // speculative prefetch for visible items
)

// pending is the settle-once result slot shared by every caller joined to a
// track's in-flight extraction.
type pending struct {
	done     chan struct{}
	artifact *Artifact
	err      error
}

func newPending() *pending {
	return &pending{done: make(chan struct{})}
}

// settle resolves the slot exactly once. Later calls are ignored.
func (p *pending) settle(artifact *Artifact, err error) {
	select {
	case <-p.done:
		return
	default:
	}
	p.artifact = artifact
	p.err = err
	close(p.done)
}

// request is one unit of scheduled background extraction work.
type request struct {
	trackID    string
	priority   int
	enqueuedAt time.Time
	seq        uint64 // tie-break for identical enqueue timestamps
	slot       *pending
}

// requestQueue is a min-heap over (priority, enqueuedAt, seq). Implements
// [container/heap.Interface].
type requestQueue []*request

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	if !q[i].enqueuedAt.Equal(q[j].enqueuedAt) {
		return q[i].enqueuedAt.Before(q[j].enqueuedAt)
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(*request)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return r
}
