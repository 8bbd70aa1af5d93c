package coalesce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleCoalescesBurstIntoOneSave(t *testing.T) {
	var saves int32
	done := make(chan struct{}, 1)
	c := New(20*time.Millisecond, func(collection string) error {
		atomic.AddInt32(&saves, 1)
		done <- struct{}{}
		return nil
	})

	for i := 0; i < 5; i++ {
		c.Schedule("books")
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for coalesced save")
	}

	if got := atomic.LoadInt32(&saves); got != 1 {
		t.Errorf("expected exactly 1 save, got %d", got)
	}
}

func TestFlushRunsImmediatelyAndClearsPending(t *testing.T) {
	c := New(time.Hour, func(collection string) error { return nil })
	c.Schedule("books")
	if c.PendingCount() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.PendingCount())
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if c.PendingCount() != 0 {
		t.Errorf("expected 0 pending after flush, got %d", c.PendingCount())
	}
}

func TestFlushPropagatesFirstError(t *testing.T) {
	boom := errFake("boom")
	c := New(time.Hour, func(collection string) error { return boom })
	c.Schedule("books")
	if err := c.Flush(); err != boom {
		t.Errorf("expected flush to propagate save error, got %v", err)
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }
