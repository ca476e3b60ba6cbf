package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dumb-meh/Sui-Amor/models"
)

func TestSingleOwnerPerKey(t *testing.T) {
	m := NewMap()
	const n = 64

	var owners int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	tickets := make([]*Ticket, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ticket, owner := m.AcquireOrJoin("fp")
			tickets[i] = ticket
			if owner {
				atomic.AddInt32(&owners, 1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if owners != 1 {
		t.Fatalf("expected exactly one owner, got %d", owners)
	}
	for i := 1; i < n; i++ {
		if tickets[i] != tickets[0] {
			t.Fatal("all callers must share one ticket")
		}
	}
}

func TestWaitersObserveOwnerResult(t *testing.T) {
	m := NewMap()
	owner, isOwner := m.AcquireOrJoin("fp")
	if !isOwner {
		t.Fatal("first caller must own the ticket")
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		joined, isOwner := m.AcquireOrJoin("fp")
		if isOwner {
			t.Fatal("joiner must not become owner while ticket outstanding")
		}
		wg.Add(1)
		go func(i int, tk *Ticket) {
			defer wg.Done()
			results[i], errs[i] = tk.Wait(context.Background(), time.Second)
		}(i, joined)
	}

	m.Complete(owner, []byte("result"))
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d error: %v", i, errs[i])
		}
		if string(results[i]) != "result" {
			t.Fatalf("waiter %d got %q", i, results[i])
		}
	}
	if m.Len() != 0 {
		t.Fatalf("ticket must be removed after completion, len=%d", m.Len())
	}
}

func TestWaitersObserveOwnerError(t *testing.T) {
	m := NewMap()
	owner, _ := m.AcquireOrJoin("fp")
	joined, _ := m.AcquireOrJoin("fp")

	failure := errors.New("provider exploded")
	go m.Fail(owner, failure)

	_, err := joined.Wait(context.Background(), time.Second)
	if !errors.Is(err, failure) {
		t.Fatalf("expected owner's error, got %v", err)
	}
}

func TestLateJoinerSeesCompletedTicket(t *testing.T) {
	m := NewMap()
	owner, _ := m.AcquireOrJoin("fp")
	late, _ := m.AcquireOrJoin("fp")
	m.Complete(owner, []byte("done"))

	// A joiner holding a resolved ticket must return immediately.
	res, err := late.Wait(context.Background(), time.Nanosecond)
	if err != nil {
		t.Fatalf("late joiner error: %v", err)
	}
	if string(res) != "done" {
		t.Fatalf("late joiner got %q", res)
	}

	// After completion the key is free again: the next caller owns it.
	if _, owner := m.AcquireOrJoin("fp"); !owner {
		t.Fatal("key must be reacquirable after completion")
	}
}

func TestWaiterBound(t *testing.T) {
	m := NewMap()
	_, _ = m.AcquireOrJoin("fp")
	joined, _ := m.AcquireOrJoin("fp")

	_, err := joined.Wait(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, models.ErrTicketTimeout) {
		t.Fatalf("expected ErrTicketTimeout, got %v", err)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	m := NewMap()
	_, _ = m.AcquireOrJoin("fp")
	joined, _ := m.AcquireOrJoin("fp")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := joined.Wait(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoubleResolveIsIgnored(t *testing.T) {
	m := NewMap()
	owner, _ := m.AcquireOrJoin("fp")
	m.Complete(owner, []byte("first"))
	m.Fail(owner, errors.New("late failure"))

	res, err := owner.Wait(context.Background(), time.Second)
	if err != nil || string(res) != "first" {
		t.Fatalf("first resolution must win: res=%q err=%v", res, err)
	}
}

func TestIndependentKeysDoNotShareTickets(t *testing.T) {
	m := NewMap()
	a, ownerA := m.AcquireOrJoin("a")
	b, ownerB := m.AcquireOrJoin("b")
	if !ownerA || !ownerB {
		t.Fatal("distinct keys must each get an owner")
	}
	if a == b {
		t.Fatal("distinct keys must not share a ticket")
	}
}
