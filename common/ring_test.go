package common

import (
	"reflect"
	"sync"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](3)
	if got := rb.Last(); got != 0 {
		t.Errorf("empty Last: got %d", got)
	}
	rb.Add(1)
	rb.Add(2)
	rb.Add(3)
	if got := rb.Get(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v", got)
	}

	rb.Add(4)
	if got := rb.Get(); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Errorf("got %v", got)
	}
	if got := rb.Last(); got != 4 {
		t.Errorf("Last: got %d", got)
	}
	if got := rb.Len(); got != 3 {
		t.Errorf("Len: got %d", got)
	}
}

func TestRingBuffer_Drain(t *testing.T) {
	rb := NewRingBuffer[int](2)
	for i := 0; i < 5; i++ {
		rb.Add(i)
	}
	if got := rb.Drain(); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Errorf("got %v", got)
	}
	if rb.Len() != 0 {
		t.Errorf("expected empty after drain")
	}
	rb.Add(9)
	if got := rb.Get(); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("got %v", got)
	}
}

func TestRingBuffer_Concurrent(t *testing.T) {
	rb := NewRingBuffer[int](100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rb.Add(i*100 + j)
			}
		}(i)
	}
	wg.Wait()
	if rb.Len() != 100 {
		t.Errorf("Len: got %d", rb.Len())
	}
}
