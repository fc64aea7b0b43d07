package scheduler

import (
	"sync"

	"vpresent/media"
)

type Entry struct {
	Sample     *media.Sample
	PresentNow bool
}

// Queue is the FIFO of scheduled samples. Nothing in it blocks; the
// scheduler loop does its own waiting.
type Queue struct {
	mu    sync.Mutex
	items []Entry
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(e Entry) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
}

func (q *Queue) Dequeue() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Entry{}, false
	}

	e := q.items[0]
	q.items[0] = Entry{}
	q.items = q.items[1:]

	return e, true
}

// PutBack reinserts e at the front, ahead of anything enqueued meanwhile.
func (q *Queue) PutBack(e Entry) {
	q.mu.Lock()
	q.items = append([]Entry{e}, q.items...)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear empties the queue and hands the removed entries to the caller.
func (q *Queue) Clear() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := q.items
	q.items = nil

	return res
}
