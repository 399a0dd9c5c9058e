package federated

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"sync"
	"time"
)

// StateStore binds anti-forgery state to an opaque per-browser flow ID.
//
// The flow ID travels in a short-lived cookie; the state travels through
// the provider redirect. The callback must present both, and consuming a
// flow removes it, so a state value can never be replayed.
type StateStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	flows map[string]stateEntry
}

type stateEntry struct {
	state    string
	provider string
	deadline time.Time
}

// DefaultStateTTL bounds how long a login redirect may stay pending.
const DefaultStateTTL = 10 * time.Minute

// NewStateStore builds a store with the given TTL (DefaultStateTTL if <= 0).
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		ttl:   ttl,
		flows: make(map[string]stateEntry),
	}
}

// Begin creates a new pending flow for the given provider and returns the
// flow ID (for the cookie) and the state (for the redirect).
func (s *StateStore) Begin(provider string, now time.Time) (flowID, state string, err error) {
	flowID, err = randomToken()
	if err != nil {
		return "", "", err
	}
	state, err = randomToken()
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gcLocked(now)
	s.flows[flowID] = stateEntry{
		state:    state,
		provider: provider,
		deadline: now.Add(s.ttl),
	}
	return flowID, state, nil
}

// Consume validates and removes a pending flow. Every failure mode
// (unknown flow, expired flow, provider mismatch, wrong state) collapses
// into ErrStateMismatch.
func (s *StateStore) Consume(flowID, provider, state string, now time.Time) error {
	if flowID == "" || state == "" {
		return ErrStateMismatch
	}

	s.mu.Lock()
	entry, ok := s.flows[flowID]
	if ok {
		// One-shot: gone whether or not the state matches.
		delete(s.flows, flowID)
	}
	s.mu.Unlock()

	if !ok || now.After(entry.deadline) || entry.provider != provider {
		return ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(entry.state), []byte(state)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

// gcLocked drops expired flows. Called under the mutex on each Begin, so
// abandoned redirects cannot accumulate.
func (s *StateStore) gcLocked(now time.Time) {
	for id, entry := range s.flows {
		if now.After(entry.deadline) {
			delete(s.flows, id)
		}
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
