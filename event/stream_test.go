package event

import (
	"reflect"
	"testing"
)

func TestStream_OnEmit(t *testing.T) {
	var s Stream[int]
	var got []int
	s.On(func(v int) { got = append(got, v) })
	s.On(func(v int) { got = append(got, v*10) })

	s.Emit(1)
	s.Emit(2)

	want := []int{1, 10, 2, 20}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStream_Cancel(t *testing.T) {
	var s Stream[string]
	calls := 0
	sub := s.On(func(string) { calls++ })
	s.Emit("a")
	sub.Cancel()
	sub.Cancel()
	s.Emit("b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStream_Once(t *testing.T) {
	var s Stream[int]
	calls := 0
	s.Once(func(int) { calls++ })
	s.Emit(1)
	s.Emit(2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestStream_CancelDuringEmit(t *testing.T) {
	var s Stream[int]
	var second Subscription
	secondCalls := 0
	s.On(func(int) { second.Cancel() })
	second = s.On(func(int) { secondCalls++ })

	s.Emit(1)
	if secondCalls != 0 {
		t.Errorf("handler cancelled earlier in the same emit ran %d times", secondCalls)
	}
}

func TestStream_AddDuringEmit(t *testing.T) {
	var s Stream[int]
	var got []int
	s.Once(func(v int) {
		s.On(func(v int) { got = append(got, v) })
	})
	s.Emit(1)
	s.Emit(2)
	if !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("got %v, want [2]", got)
	}
}

func TestSignal(t *testing.T) {
	var s Signal
	fired := false
	s.On(func(struct{}) { fired = true })
	Fire(&s)
	if !fired {
		t.Error("signal did not fire")
	}
}

func TestSubscription_Zero(t *testing.T) {
	var sub Subscription
	sub.Cancel()
}
