package breaker

import (
	"sync"
	"testing"
	"time"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := New(Config{Threshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		b.Failure()
		if !b.Allow() {
			t.Fatalf("circuit opened after %d failures, threshold is 3", i+1)
		}
	}

	b.Failure()
	if b.Allow() {
		t.Error("circuit should be open after 3 failures")
	}
	if b.State() != StateOpen {
		t.Errorf("State() = %v, want open", b.State())
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := New(Config{Threshold: 3, ResetTimeout: time.Minute})

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if !b.Allow() {
		t.Error("success should clear the consecutive failure count")
	}
	if b.Failures() != 2 {
		t.Errorf("Failures() = %d, want 2", b.Failures())
	}
}

func TestBreaker_ClosesAfterResetTimeout(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: 30 * time.Millisecond})

	b.Failure()
	if b.Allow() {
		t.Fatal("circuit should be open")
	}

	time.Sleep(50 * time.Millisecond)

	// Close is unconditional on timeout; counters reset
	if !b.Allow() {
		t.Error("circuit should close after the reset timeout")
	}
	if b.Failures() != 0 {
		t.Errorf("Failures() = %d after close, want 0", b.Failures())
	}
}

func TestBreaker_FailuresWhileOpenIgnored(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: 30 * time.Millisecond})

	b.Failure()
	b.Failure()
	b.Failure()

	time.Sleep(50 * time.Millisecond)

	if !b.Allow() {
		t.Error("extra failures while open must not extend the open window")
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	b := New(Config{
		Threshold:    1,
		ResetTimeout: 30 * time.Millisecond,
		OnStateChange: func(from, to State) {
			mu.Lock()
			transitions = append(transitions, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	b.Failure()
	time.Sleep(50 * time.Millisecond)
	b.Allow()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := New(Config{Threshold: 1, ResetTimeout: time.Hour})

	b.Failure()
	if b.Allow() {
		t.Fatal("circuit should be open")
	}

	b.Reset()
	if !b.Allow() {
		t.Error("Reset should force the circuit closed")
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New(Config{})

	for i := 0; i < 4; i++ {
		b.Failure()
	}
	if !b.Allow() {
		t.Error("default threshold is 5; circuit opened early")
	}
	b.Failure()
	if b.Allow() {
		t.Error("circuit should open at the default threshold of 5")
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b := New(Config{Threshold: 100, ResetTimeout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Failure()
				b.Allow()
				b.Success()
			}
		}()
	}
	wg.Wait()

	// No assertion beyond absence of data races under -race
	_ = b.State()
}
