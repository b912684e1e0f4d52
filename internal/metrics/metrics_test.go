package metrics

import (
	"sync"
	"testing"
)

func TestIncAndSnapshot(t *testing.T) {
	s := NewSet()
	s.Inc(LoginSuccess)
	s.Inc(LoginSuccess)
	s.Add(TokenIssued, 4)

	if got := s.Value(LoginSuccess); got != 2 {
		t.Fatalf("LoginSuccess = %d, want 2", got)
	}

	snap := s.Snapshot()
	if snap[LoginSuccess] != 2 || snap[TokenIssued] != 4 || snap[LoginFailure] != 0 {
		t.Fatalf("snapshot = %v", snap)
	}
	if len(snap) != Count {
		t.Fatalf("snapshot has %d entries, want %d", len(snap), Count)
	}
}

func TestNilSetIsSafe(t *testing.T) {
	var s *Set
	s.Inc(LoginSuccess)
	s.Add(TokenIssued, 3)
	if s.Value(LoginSuccess) != 0 {
		t.Fatal("nil set holds a value")
	}
	if got := s.Snapshot(); len(got) != 0 {
		t.Fatalf("nil snapshot has %d entries", len(got))
	}
}

func TestEveryIDHasAName(t *testing.T) {
	seen := make(map[string]ID, Count)
	for i := 0; i < Count; i++ {
		id := ID(i)
		name := id.Name()
		if name == "" {
			t.Fatalf("ID %d has no name", i)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("IDs %d and %d share name %q", prev, id, name)
		}
		seen[name] = id
	}
	if ID(Count).Name() != "" {
		t.Fatal("out-of-range ID has a name")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	s := NewSet()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.Inc(SessionCreated)
			}
		}()
	}
	wg.Wait()

	if got := s.Value(SessionCreated); got != 8000 {
		t.Fatalf("SessionCreated = %d, want 8000", got)
	}
}
