package queue

import "testing"

func TestPopOrderedByTimeThenInsertion(t *testing.T) {
	q := New[string]()
	q.Push(5, "b")
	q.Push(5, "a")
	q.Push(1, "first")
	q.Push(10, "last")

	want := []string{"first", "b", "a", "last"}
	for _, w := range want {
		_, v, ok := q.Pop()
		if !ok {
			t.Fatalf("expected more entries, wanted %q", w)
		}
		if v != w {
			t.Fatalf("got %q, want %q", v, w)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len %d", q.Len())
	}
}

func TestPopReadyDrainsUpToNow(t *testing.T) {
	q := New[int]()
	q.Push(10, 1)
	q.Push(10, 2)
	q.Push(20, 3)
	q.Push(5, 0)

	ready := q.PopReady(10)
	want := []int{0, 1, 2}
	if len(ready) != len(want) {
		t.Fatalf("got %v, want %v", ready, want)
	}
	for i, w := range want {
		if ready[i] != w {
			t.Fatalf("got %v, want %v", ready, want)
		}
	}
	if q.Len() != 1 {
		t.Fatalf("expected one entry left, got %d", q.Len())
	}

	time, v, ok := q.Peek()
	if !ok || time != 20 || v != 3 {
		t.Fatalf("Peek: got time=%d v=%d ok=%v", time, v, ok)
	}
}

func TestPopReadyEmptyQueue(t *testing.T) {
	q := New[int]()
	if got := q.PopReady(100); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
