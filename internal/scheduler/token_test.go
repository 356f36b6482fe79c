package scheduler

import "testing"

func TestNewTokenAssignsIncreasingIDs(t *testing.T) {
	a := NewToken("a")
	b := NewToken("b")
	if b.id <= a.id {
		t.Fatalf("token ids not increasing: a=%d b=%d", a.id, b.id)
	}
}

func TestTokenStringReturnsName(t *testing.T) {
	tok := NewToken("panel[3]")
	if got := tok.String(); got != "panel[3]" {
		t.Fatalf("String() = %q, want %q", got, "panel[3]")
	}
}

func TestTaskDepsSortedByTokenID(t *testing.T) {
	t1 := NewToken("t1")
	t2 := NewToken("t2")
	t3 := NewToken("t3")

	task := &Task{In: []*Token{t3}, Out: []*Token{t1}, InOut: []*Token{t2}}
	deps := task.deps()
	if len(deps) != 3 {
		t.Fatalf("deps() returned %d entries, want 3", len(deps))
	}
	for i := 1; i < len(deps); i++ {
		if deps[i-1].token.id > deps[i].token.id {
			t.Fatalf("deps not sorted by token id: %+v", deps)
		}
	}
}

func TestAcquireExcludesSecondInOutUntilRelease(t *testing.T) {
	tok := NewToken("x")
	first := &Task{InOut: []*Token{tok}}
	firstDeps := first.deps()
	first.acquire(firstDeps)

	second := &Task{InOut: []*Token{tok}}
	secondDeps := second.deps()
	acquired := make(chan struct{})
	go func() {
		second.acquire(secondDeps)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second task acquired InOut token while first still held it")
	default:
	}

	first.release(firstDeps)
	<-acquired
	second.release(secondDeps)
}
