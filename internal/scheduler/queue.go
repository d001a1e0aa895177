package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"social_metrics/internal/domain"
)

// queueItem is a job waiting for dispatch at its eligible time.
type queueItem struct {
	job        *domain.ExtractionJob
	eligibleAt time.Time
	seq        uint64
}

// jobQueue is a delay queue ordered by eligible time, FIFO among jobs with
// equal eligibility. A requeued job re-enters at its new eligible time, not
// at the head.
type jobQueue struct {
	mu    sync.Mutex
	items itemHeap
	seq   uint64
	wake  chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		wake: make(chan struct{}, 1),
	}
}

// Push enqueues a job that becomes visible for dequeue at eligibleAt.
func (q *jobQueue) Push(job *domain.ExtractionJob, eligibleAt time.Time) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, &queueItem{job: job, eligibleAt: eligibleAt, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Peek returns the earliest-eligible job's eligible time without removing it.
func (q *jobQueue) Peek() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].eligibleAt, true
}

// PopEligible removes and returns the earliest job whose eligible time has
// passed, or nil when nothing is due yet.
func (q *jobQueue) PopEligible(now time.Time) *domain.ExtractionJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.items[0].eligibleAt.After(now) {
		return nil
	}
	item := heap.Pop(&q.items).(*queueItem)
	return item.job
}

// Remove deletes a pending job by id, returning it when found.
func (q *jobQueue) Remove(jobID string) *domain.ExtractionJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.job.ID == jobID {
			heap.Remove(&q.items, i)
			return item.job
		}
	}
	return nil
}

// Len returns the number of queued jobs.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wake is signalled whenever a push may have changed the earliest item.
func (q *jobQueue) Wake() <-chan struct{} {
	return q.wake
}

type itemHeap []*queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].eligibleAt.Equal(h[j].eligibleAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].eligibleAt.Before(h[j].eligibleAt)
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(*queueItem))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
