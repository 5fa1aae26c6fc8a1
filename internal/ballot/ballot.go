// Package ballot provides the approval functions that gate when a pending
// funding cycle reconfiguration may take effect.
package ballot

import (
	"fmt"
	"sync"
	"time"
)

// State is the outcome of a ballot for one reconfiguration.
type State int

const (
	Pending State = iota
	Approved
	Failed
)

func (s State) String() string {
	switch s {
	case Approved:
		return "approved"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Ballot decides whether a reconfiguration made at configuredAt may activate
// at activationAt, as observed at now. Implementations must be pure.
type Ballot interface {
	State(configuredAt, activationAt, now time.Time) State
	// Duration is the minimum time between configuration and activation.
	Duration() time.Duration
}

// Timelock approves a reconfiguration once Delay has elapsed since it was
// configured and before it would activate.
type Timelock struct {
	Delay time.Duration
}

func (t Timelock) Duration() time.Duration { return t.Delay }

func (t Timelock) State(configuredAt, activationAt, now time.Time) State {
	ready := configuredAt.Add(t.Delay)
	if activationAt.Before(ready) || now.Before(ready) {
		return Pending
	}
	return Approved
}

// Registry resolves ballots by the name stored on funding cycles. The empty
// name means "no ballot": every reconfiguration is approved immediately.
type Registry struct {
	mu      sync.RWMutex
	ballots map[string]Ballot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ballots: make(map[string]Ballot)}
}

// Register adds or replaces a named ballot.
func (r *Registry) Register(name string, b Ballot) error {
	if name == "" {
		return fmt.Errorf("ballot name is required")
	}
	if b == nil {
		return fmt.Errorf("ballot %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ballots[name] = b
	return nil
}

// Lookup returns the ballot registered under name. The empty name resolves to
// (nil, true).
func (r *Registry) Lookup(name string) (Ballot, bool) {
	if name == "" {
		return nil, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.ballots[name]
	return b, ok
}
