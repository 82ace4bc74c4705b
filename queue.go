package waitnotify

import (
	"sync"
)

// queueChunkSize is the number of tasks per node in the taskQueue linked
// list. 128 tasks * 8 bytes/task + overhead = ~1KB per chunk.
const queueChunkSize = 128

// taskQueue is a chunked linked-list queue for task submission.
//
// Thread Safety: this struct is NOT thread-safe. The owning Loop provides
// external synchronization via its submit mutex.
//
// Fixed-size chunk arrays provide cache locality and amortize allocations,
// and sync.Pool chunk recycling prevents GC thrashing under load.
type taskQueue struct {
	head   *taskChunk
	tail   *taskChunk
	length int
}

// taskChunkPool recycles exhausted chunks.
var taskChunkPool = sync.Pool{
	New: func() any {
		return &taskChunk{}
	},
}

// taskChunk is a fixed-size node in the chunked linked-list.
// It uses readPos/pos cursors for O(1) push/pop without shifting.
type taskChunk struct {
	tasks   [queueChunkSize]func()
	next    *taskChunk
	readPos int // first unread slot
	pos     int // first unused slot
}

// newTaskChunk returns a chunk from the pool, reset for reuse.
func newTaskChunk() *taskChunk {
	c := taskChunkPool.Get().(*taskChunk)
	c.pos = 0
	c.readPos = 0
	c.next = nil
	return c
}

// returnTaskChunk clears task slots (so retained closures can be collected)
// and returns the chunk to the pool.
func returnTaskChunk(c *taskChunk) {
	for i := 0; i < c.pos; i++ {
		c.tasks[i] = nil
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	taskChunkPool.Put(c)
}

// Push adds a task to the queue. Caller must hold the external mutex.
func (q *taskQueue) Push(task func()) {
	if q.tail == nil {
		q.tail = newTaskChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.tasks) {
		newTail := newTaskChunk()
		q.tail.next = newTail
		q.tail = newTail
	}

	q.tail.tasks[q.tail.pos] = task
	q.tail.pos++
	q.length++
}

// Pop removes and returns a task, or false if the queue is empty.
// Caller must hold the external mutex.
func (q *taskQueue) Pop() (func(), bool) {
	if q.head == nil {
		return nil, false
	}

	if q.head.readPos >= q.head.pos {
		// If this is the only chunk, the queue is empty; reset cursors for reuse.
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return nil, false
		}
		oldHead := q.head
		q.head = q.head.next
		returnTaskChunk(oldHead)
	}

	if q.head.readPos >= q.head.pos {
		return nil, false
	}

	task := q.head.tasks[q.head.readPos]
	q.head.tasks[q.head.readPos] = nil // GC safety
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return task, true
		}
		oldHead := q.head
		q.head = q.head.next
		returnTaskChunk(oldHead)
	}

	return task, true
}

// Length returns the queue length. Caller must hold the external mutex.
func (q *taskQueue) Length() int {
	return q.length
}
