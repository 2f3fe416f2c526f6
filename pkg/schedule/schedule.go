// Package schedule holds deadline-carrying tasks that the frame loop fires
// by polling. Nothing runs in the background: a task only executes inside
// Poll, on the caller's goroutine.
package schedule

import (
	"container/heap"
	"sync"
	"time"
)

// Handle identifies a scheduled task. Tasks cannot be cancelled.
type Handle struct {
	ID       uint64
	Deadline time.Time
}

type task struct {
	handle Handle
	fn     func(now time.Time)
}

// tasks is a min-heap on deadline, ties broken by scheduling order.
type tasks []task

func (t tasks) Len() int { return len(t) }
func (t tasks) Less(i, j int) bool {
	if t[i].handle.Deadline.Equal(t[j].handle.Deadline) {
		return t[i].handle.ID < t[j].handle.ID
	}
	return t[i].handle.Deadline.Before(t[j].handle.Deadline)
}
func (t tasks) Swap(i, j int) { t[i], t[j] = t[j], t[i] }
func (t *tasks) Push(x any)   { *t = append(*t, x.(task)) }
func (t *tasks) Pop() any {
	old := *t
	n := len(old)
	x := old[n-1]
	*t = old[:n-1]
	return x
}

// Queue is a set of pending tasks. The zero value is ready to use.
type Queue struct {
	mu     sync.Mutex
	tasks  tasks
	nextID uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Schedule registers fn to run at the first Poll at or after deadline.
func (q *Queue) Schedule(deadline time.Time, fn func(now time.Time)) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	h := Handle{ID: q.nextID, Deadline: deadline}
	heap.Push(&q.tasks, task{handle: h, fn: fn})
	return h
}

// Poll runs every task whose deadline is not after now, earliest first,
// and returns how many ran. Tasks may schedule further tasks; those run in
// the same Poll if they are already due.
func (q *Queue) Poll(now time.Time) int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 || q.tasks[0].handle.Deadline.After(now) {
			q.mu.Unlock()
			return n
		}
		t := heap.Pop(&q.tasks).(task)
		q.mu.Unlock()

		t.fn(now)
		n++
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Next returns the earliest pending deadline.
func (q *Queue) Next() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return time.Time{}, false
	}
	return q.tasks[0].handle.Deadline, true
}
