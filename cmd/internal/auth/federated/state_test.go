package federated

import (
	"errors"
	"testing"
	"time"
)

func TestStateStore_BeginConsume_RoundTrip(t *testing.T) {
	t.Parallel()

	s := NewStateStore(DefaultStateTTL)
	now := time.Now().UTC()

	flowID, state, err := s.Begin("google", now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if flowID == "" || state == "" || flowID == state {
		t.Fatalf("expected distinct opaque values")
	}

	if err := s.Consume(flowID, "google", state, now.Add(time.Minute)); err != nil {
		t.Fatalf("consume: %v", err)
	}
}

func TestStateStore_Consume_OneShot(t *testing.T) {
	t.Parallel()

	s := NewStateStore(DefaultStateTTL)
	now := time.Now().UTC()

	flowID, state, err := s.Begin("google", now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := s.Consume(flowID, "google", state, now); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := s.Consume(flowID, "google", state, now); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch on replay, got %v", err)
	}
}

func TestStateStore_Consume_WrongState_BurnsFlow(t *testing.T) {
	t.Parallel()

	s := NewStateStore(DefaultStateTTL)
	now := time.Now().UTC()

	flowID, state, err := s.Begin("github", now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := s.Consume(flowID, "github", "forged-state", now); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
	// The flow is one-shot even on failure: the real state is dead too.
	if err := s.Consume(flowID, "github", state, now); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected burned flow, got %v", err)
	}
}

func TestStateStore_Consume_Expired(t *testing.T) {
	t.Parallel()

	s := NewStateStore(time.Minute)
	now := time.Now().UTC()

	flowID, state, err := s.Begin("google", now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := s.Consume(flowID, "google", state, now.Add(2*time.Minute)); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch after expiry, got %v", err)
	}
}

func TestStateStore_Consume_ProviderMismatch(t *testing.T) {
	t.Parallel()

	s := NewStateStore(DefaultStateTTL)
	now := time.Now().UTC()

	flowID, state, err := s.Begin("google", now)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	if err := s.Consume(flowID, "github", state, now); !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch on provider swap, got %v", err)
	}
}

func TestStateStore_Begin_GCsExpiredFlows(t *testing.T) {
	t.Parallel()

	s := NewStateStore(time.Minute)
	now := time.Now().UTC()

	if _, _, err := s.Begin("google", now); err != nil {
		t.Fatalf("begin 1: %v", err)
	}
	if _, _, err := s.Begin("google", now.Add(5*time.Minute)); err != nil {
		t.Fatalf("begin 2: %v", err)
	}

	s.mu.Lock()
	n := len(s.flows)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected expired flow collected, have %d flows", n)
	}
}
