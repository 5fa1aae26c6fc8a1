package cycle

import (
	"sort"

	"CycleLedger/internal/model"
)

// Snapshot is the persisted form of one project's cycles.
type Snapshot struct {
	Cycles  []model.FundingCycle
	Pending *model.FundingCycle
}

// Export returns a copy of the project's stored cycles and pending record.
func (s *Store) Export(projectID uint64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{}
	for _, n := range s.numbers[projectID] {
		snap.Cycles = append(snap.Cycles, *s.records[cycleKey{projectID, n}])
	}
	if pend, ok := s.pending[projectID]; ok {
		cp := *pend
		snap.Pending = &cp
	}
	return snap
}

// Import replaces the project's cycles with a snapshot. Ids continue after
// the highest imported id.
func (s *Store) Import(projectID uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.numbers[projectID] {
		key := cycleKey{projectID, n}
		delete(s.ids, s.records[key].ID)
		delete(s.records, key)
	}
	delete(s.numbers, projectID)
	delete(s.pending, projectID)

	cycles := append([]model.FundingCycle(nil), snap.Cycles...)
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Number < cycles[j].Number })
	for i := range cycles {
		fc := cycles[i]
		fc.ProjectID = projectID
		if fc.Configuration == 0 {
			fc.Configuration = fc.ID
		}
		s.put(&fc)
		s.bumpID(fc.ID)
	}
	if snap.Pending != nil {
		pend := *snap.Pending
		pend.ProjectID = projectID
		if pend.Configuration == 0 {
			pend.Configuration = pend.ID
		}
		s.pending[projectID] = &pend
		s.bumpID(pend.ID)
	}
}

func (s *Store) bumpID(id uint64) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}
