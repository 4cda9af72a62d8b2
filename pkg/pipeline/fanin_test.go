package pipeline

import (
	"errors"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func TestFanInDeliversInOrder(t *testing.T) {
	fan := NewFanIn[int]()

	// Submit in reverse.
	for n := 9; n >= 0; n-- {
		if err := fan.Submit(uint64(n), n); err != nil {
			t.Fatalf("submit %d: %v", n, err)
		}
	}
	fan.Close()

	for want := 0; want < 10; want++ {
		got, ok := fan.Next()
		if !ok {
			t.Fatalf("fan-in closed after %d items, want 10", want)
		}
		if got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if _, ok := fan.Next(); ok {
		t.Fatal("Next() returned an item after the stream was drained")
	}
}

func TestFanInRandomSubmissionOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n")
		order := rapid.Permutation(seq(n)).Draw(t, "order")

		fan := NewFanIn[int]()
		done := make(chan []int)
		go func() {
			var got []int
			for {
				v, ok := fan.Next()
				if !ok {
					break
				}
				got = append(got, v)
			}
			done <- got
		}()

		errs := make(chan error, n)
		var wg sync.WaitGroup
		for _, v := range order {
			wg.Add(1)
			go func(v int) {
				defer wg.Done()
				if err := fan.Submit(uint64(v), v); err != nil {
					errs <- err
				}
			}(v)
		}
		wg.Wait()
		fan.Close()
		close(errs)
		for err := range errs {
			t.Fatalf("submit: %v", err)
		}

		got := <-done
		if len(got) != n {
			t.Fatalf("consumer received %d items, want %d", len(got), n)
		}
		for i, v := range got {
			if v != i {
				t.Fatalf("item %d = %d, want %d", i, v, i)
			}
		}
	})
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestFanInRejectsDuplicates(t *testing.T) {
	fan := NewFanIn[string]()
	if err := fan.Submit(3, "a"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := fan.Submit(3, "b"); !errors.Is(err, ErrDuplicateSequence) {
		t.Fatalf("duplicate submit error = %v, want %v", err, ErrDuplicateSequence)
	}
}

func TestFanInRejectsConsumedSequence(t *testing.T) {
	fan := NewFanIn[string]()
	if err := fan.Submit(0, "a"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v, ok := fan.Next(); !ok || v != "a" {
		t.Fatalf("Next() = %q, %v", v, ok)
	}
	if err := fan.Submit(0, "again"); !errors.Is(err, ErrSequenceConsumed) {
		t.Fatalf("replayed submit error = %v, want %v", err, ErrSequenceConsumed)
	}
}

func TestFanInRejectsSubmitAfterClose(t *testing.T) {
	fan := NewFanIn[string]()
	fan.Close()
	if err := fan.Submit(0, "late"); !errors.Is(err, ErrFanInClosed) {
		t.Fatalf("late submit error = %v, want %v", err, ErrFanInClosed)
	}
}

func TestFanInBlocksUntilExpectedArrives(t *testing.T) {
	fan := NewFanIn[int]()
	if err := fan.Submit(1, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got := make(chan int)
	go func() {
		v, _ := fan.Next()
		got <- v
	}()

	// Item 1 is pending but 0 has not arrived; the consumer must wait.
	select {
	case v := <-got:
		t.Fatalf("Next() returned %d before sequence 0 was submitted", v)
	default:
	}

	if err := fan.Submit(0, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v := <-got; v != 0 {
		t.Fatalf("Next() = %d, want 0", v)
	}
	if v, ok := fan.Next(); !ok || v != 1 {
		t.Fatalf("Next() = %d, %v, want 1", v, ok)
	}
	if pending := fan.Pending(); pending != 0 {
		t.Fatalf("%d items still pending after drain", pending)
	}
}
