package runtime

import (
	"context"
	"testing"
	"time"
)

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := NewSessionLocks()
	a, err := locks.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := locks.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock on another session blocked: %v", err)
	}
	if locks.Len() != 2 {
		t.Errorf("Len = %d, want 2", locks.Len())
	}
	a()
	b()
	if locks.Len() != 0 {
		t.Errorf("entries not released: %d", locks.Len())
	}
}

func TestSessionLocksHandOver(t *testing.T) {
	locks := NewSessionLocks()
	first, err := locks.Lock(context.Background(), "s")
	if err != nil {
		t.Fatal(err)
	}
	got := make(chan func(), 1)
	go func() {
		release, err := locks.Lock(context.Background(), "s")
		if err != nil {
			t.Error(err)
			return
		}
		got <- release
	}()

	select {
	case <-got:
		t.Fatal("second holder acquired a held lease")
	case <-time.After(20 * time.Millisecond):
	}
	first()
	first() // released twice is a no-op

	select {
	case second := <-got:
		second()
	case <-time.After(time.Second):
		t.Fatal("lease was not handed over")
	}
	if locks.Len() != 0 {
		t.Errorf("entries not released: %d", locks.Len())
	}
}

func TestSessionLocksCancelledWaiter(t *testing.T) {
	locks := NewSessionLocks()
	release, err := locks.Lock(context.Background(), "s")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locks.Lock(ctx, "s"); err == nil {
		t.Fatal("cancelled waiter acquired the lease")
	}
	release()
	if locks.Len() != 0 {
		t.Errorf("entries not released: %d", locks.Len())
	}
}

func TestAbortController(t *testing.T) {
	ac := NewAbortController(context.Background(), "r1", 0)
	defer ac.CleanUp()
	if ac.Err() != nil {
		t.Fatalf("fresh controller reports %v", ac.Err())
	}
	ac.Abort()
	ac.Abort()
	if err := ac.Err(); err == nil || ac.Context().Err() == nil {
		t.Fatalf("Abort did not cancel: %v", err)
	}
}
