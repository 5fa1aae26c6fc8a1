package governance

import "CycleLedger/internal/model"

// Snapshot is the persisted form of the authority.
type Snapshot struct {
	Governance model.Address              `json:"governance"`
	Successor  model.Address              `json:"successor,omitempty"`
	Owners     map[uint64]model.Address   `json:"owners"`
	Operators  map[uint64][]model.Address `json:"operators"`
}

// Export returns the whole authorization state.
func (a *Authority) Export() Snapshot {
	a.mu.RLock()
	snap := Snapshot{
		Governance: a.governance,
		Owners:     make(map[uint64]model.Address, len(a.owners)),
		Operators:  make(map[uint64][]model.Address, len(a.operators)),
	}
	if ap, ok := a.appointment.(PendingAppointment); ok {
		snap.Successor = ap.Successor
	}
	for id, owner := range a.owners {
		snap.Owners[id] = owner
	}
	ids := make([]uint64, 0, len(a.operators))
	for id := range a.operators {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	for _, id := range ids {
		snap.Operators[id] = a.Operators(id)
	}
	return snap
}

// Import replaces the authorization state.
func (a *Authority) Import(snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !snap.Governance.IsZero() {
		a.governance = snap.Governance
	}
	a.appointment = NoAppointment{}
	if !snap.Successor.IsZero() {
		a.appointment = PendingAppointment{Successor: snap.Successor}
	}
	a.owners = make(map[uint64]model.Address, len(snap.Owners))
	for id, owner := range snap.Owners {
		a.owners[id] = owner
	}
	a.operators = make(map[uint64]map[model.Address]struct{}, len(snap.Operators))
	for id, ops := range snap.Operators {
		set := make(map[model.Address]struct{}, len(ops))
		for _, op := range ops {
			set[op] = struct{}{}
		}
		a.operators[id] = set
	}
}
