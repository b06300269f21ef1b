package rooms

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistry_JoinLeave(t *testing.T) {
	r := New()

	if _, switched := r.Join("c1", "room1"); switched {
		t.Error("first join should not report a switch")
	}
	if roomID, ok := r.Room("c1"); !ok || roomID != "room1" {
		t.Errorf("expected c1 in room1, got %q %v", roomID, ok)
	}

	// Re-joining the same room is a no-op.
	if _, switched := r.Join("c1", "room1"); switched {
		t.Error("re-join of same room should not report a switch")
	}

	roomID, ok := r.Leave("c1")
	if !ok || roomID != "room1" {
		t.Errorf("expected Leave to return room1, got %q %v", roomID, ok)
	}
	if _, ok := r.Room("c1"); ok {
		t.Error("expected membership removed after Leave")
	}

	// Leave without membership.
	if _, ok := r.Leave("c1"); ok {
		t.Error("expected second Leave to report false")
	}
}

func TestRegistry_SwitchReportsOldRoom(t *testing.T) {
	r := New()

	r.Join("c1", "room1")
	prev, switched := r.Join("c1", "room2")
	if !switched || prev != "room1" {
		t.Errorf("expected switch from room1, got %q %v", prev, switched)
	}
	if roomID, _ := r.Room("c1"); roomID != "room2" {
		t.Errorf("expected c1 in room2, got %q", roomID)
	}
}

func TestRegistry_Members(t *testing.T) {
	r := New()

	r.Join("c1", "room1")
	r.Join("c2", "room1")
	r.Join("c3", "room2")

	members := r.Members("room1")
	if len(members) != 2 {
		t.Fatalf("expected 2 members in room1, got %v", members)
	}
	for _, m := range members {
		if m != "c1" && m != "c2" {
			t.Errorf("unexpected member %s", m)
		}
	}
	if members := r.Members("empty"); len(members) != 0 {
		t.Errorf("expected no members, got %v", members)
	}
}

func TestRegistry_ConcurrentLeaveRunsOnce(t *testing.T) {
	r := New()
	r.Join("c1", "room1")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Leave("c1"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winning Leave, got %d", wins.Load())
	}
}
