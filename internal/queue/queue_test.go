package queue

import (
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{ID: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	q.Push(testItem{ID: 2}, testItem{ID: 3})
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Take(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})

	batch := q.Take(2)
	if len(batch) != 2 || batch[0].ID != 1 || batch[1].ID != 2 {
		t.Errorf("unexpected batch %+v", batch)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 left, got %d", q.Len())
	}

	rest := q.Take(10)
	if len(rest) != 1 || rest[0].ID != 3 {
		t.Errorf("unexpected rest %+v", rest)
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}

	if got := q.Take(5); len(got) != 0 {
		t.Errorf("expected nothing from empty queue, got %+v", got)
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	items := q.GetAndEmpty()
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
	if !q.Empty() {
		t.Error("expected empty queue after GetAndEmpty")
	}

	// The returned slice must not alias the queue's new storage
	q.Push(testItem{ID: 9})
	if items[0].ID != 1 {
		t.Errorf("returned items were overwritten: %+v", items)
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := New[testItem]()
	q.Push(testItem{ID: 1}, testItem{ID: 2})

	failed := q.Take(0)
	q.Push(testItem{ID: 3})
	q.Requeue(failed...)
	q.Requeue()

	items := q.GetAndEmpty()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []int{1, 2, 3} {
		if items[i].ID != want {
			t.Errorf("position %d: expected ID %d, got %d", i, want, items[i].ID)
		}
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(base*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}
