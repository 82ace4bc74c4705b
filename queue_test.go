package waitnotify

import "testing"

func TestTaskQueue_Order(t *testing.T) {
	var q taskQueue
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		q.Push(func() { got = append(got, i) })
	}
	if q.Length() != 10 {
		t.Fatalf("Length() = %d, want 10", q.Length())
	}
	for {
		task, ok := q.Pop()
		if !ok {
			break
		}
		task()
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: got %v", got)
		}
	}
	if len(got) != 10 {
		t.Fatalf("ran %d tasks, want 10", len(got))
	}
}

func TestTaskQueue_ChunkBoundaries(t *testing.T) {
	var q taskQueue
	const n = queueChunkSize*3 + 7
	count := 0
	for i := 0; i < n; i++ {
		q.Push(func() { count++ })
	}
	if q.Length() != n {
		t.Fatalf("Length() = %d, want %d", q.Length(), n)
	}
	for {
		task, ok := q.Pop()
		if !ok {
			break
		}
		task()
	}
	if count != n {
		t.Fatalf("ran %d tasks, want %d", count, n)
	}
	if q.Length() != 0 {
		t.Fatalf("Length() = %d after drain, want 0", q.Length())
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue should report false")
	}
}

func TestTaskQueue_Interleaved(t *testing.T) {
	var q taskQueue
	ran := 0
	q.Push(func() { ran++ })
	q.Push(func() { ran++ })
	if task, ok := q.Pop(); !ok {
		t.Fatal("expected a task")
	} else {
		task()
	}
	q.Push(func() { ran++ })
	for {
		task, ok := q.Pop()
		if !ok {
			break
		}
		task()
	}
	if ran != 3 {
		t.Fatalf("ran %d tasks, want 3", ran)
	}
}
