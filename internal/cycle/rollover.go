package cycle

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/ballot"
	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
)

// static cycles never roll over on their own: either they have no duration
// or their configuration has run out of cycles.
func static(fc *model.FundingCycle) bool {
	return fc.Duration == 0 || fc.CycleLimit == 1
}

// advance materializes every rollover and approved reconfiguration of the
// project up to now and returns the active cycle. Callers hold s.mu.
//
// Ballots are assumed monotone: once Approved or Failed at some time they
// stay so at every later time.
func (s *Store) advance(projectID uint64, now time.Time) (*model.FundingCycle, error) {
	cur, ok := s.latest(projectID)
	if !ok {
		return nil, fmt.Errorf("project %d has no funding cycle: %w", projectID, model.ErrNotFound)
	}

	var err error
	for {
		pend := s.pending[projectID]

		if static(cur) {
			if pend == nil {
				return cur, nil
			}
			start := s.earliestStart(cur, pend)
			if start.After(now) {
				return cur, nil
			}
			switch s.ballotState(cur, pend, start, now) {
			case ballot.Approved:
				if cur, err = s.promote(cur, pend, start); err != nil {
					return nil, err
				}
				continue
			case ballot.Failed:
				delete(s.pending, projectID)
			}
			return cur, nil
		}

		end := cur.EndAt()
		if end.After(now) {
			return cur, nil
		}

		k := uint64(now.Sub(cur.StartAt) / cur.Duration)
		if cur.CycleLimit > 0 && k > uint64(cur.CycleLimit-1) {
			k = uint64(cur.CycleLimit - 1)
		}

		if pend != nil {
			last := cur.StartAt.Add(time.Duration(k) * cur.Duration)
			if s.ballotState(cur, pend, last, last) != ballot.Pending {
				// Resolved somewhere in [end, last]. Roll straight to the
				// cycle ending at the first resolved boundary.
				if i := s.firstResolved(cur, pend, k); i > 1 {
					if cur, err = s.roll(cur, i-1); err != nil {
						return nil, err
					}
					continue
				}
				switch s.ballotState(cur, pend, end, end) {
				case ballot.Approved:
					if cur, err = s.promote(cur, pend, end); err != nil {
						return nil, err
					}
					continue
				case ballot.Failed:
					delete(s.pending, projectID)
				}
			}
		}

		if cur, err = s.roll(cur, k); err != nil {
			return nil, err
		}
	}
}

// firstResolved returns the first boundary i in [1, k] after cur.StartAt at
// which the ballot on pend is no longer pending. It must be resolved at k.
func (s *Store) firstResolved(cur, pend *model.FundingCycle, k uint64) uint64 {
	lo, hi := uint64(1), k
	for lo < hi {
		mid := lo + (hi-lo)/2
		at := cur.StartAt.Add(time.Duration(mid) * cur.Duration)
		if s.ballotState(cur, pend, at, at) == ballot.Pending {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// earliestStart returns when pend could first take over from cur.
func (s *Store) earliestStart(cur, pend *model.FundingCycle) time.Time {
	gate := pend.ConfiguredAt
	if b, _ := s.ballots.Lookup(cur.Ballot); b != nil {
		gate = gate.Add(b.Duration())
	}

	base := cur.StartAt
	if cur.Duration > 0 {
		base = cur.EndAt()
	}
	if static(cur) {
		return latestOf(base, pend.ConfiguredAt, gate)
	}
	if !gate.After(base) {
		return base
	}

	k := uint64((gate.Sub(base) + cur.Duration - 1) / cur.Duration)
	if cur.CycleLimit > 0 && k > uint64(cur.CycleLimit-1) {
		return gate
	}
	return base.Add(time.Duration(k) * cur.Duration)
}

func (s *Store) ballotState(cur, pend *model.FundingCycle, activationAt, now time.Time) ballot.State {
	b, _ := s.ballots.Lookup(cur.Ballot)
	if b == nil {
		return ballot.Approved
	}
	return b.State(pend.ConfiguredAt, activationAt, now)
}

// promote turns the pending record into the cycle following cur.
func (s *Store) promote(cur, pend *model.FundingCycle, start time.Time) (*model.FundingCycle, error) {
	weight, err := calculator.DecayWeight(cur.Weight, cur.DiscountRate)
	if err != nil {
		return nil, err
	}
	next := *pend
	next.Number = cur.Number + 1
	next.PreviousID = cur.ID
	next.StartAt = start
	next.Weight = weight
	next.Tapped = sdkmath.ZeroInt()
	s.put(&next)
	delete(s.pending, cur.ProjectID)
	return &next, nil
}

// roll derives the cycle k boundaries after cur with the same configuration.
func (s *Store) roll(cur *model.FundingCycle, k uint64) (*model.FundingCycle, error) {
	weight, err := calculator.DecayWeightN(cur.Weight, cur.DiscountRate, k)
	if err != nil {
		return nil, err
	}
	next := *cur
	next.ID = s.nextID
	s.nextID++
	next.Number = cur.Number + k
	next.PreviousID = cur.ID
	next.StartAt = cur.StartAt.Add(time.Duration(k) * cur.Duration)
	next.Weight = weight
	next.Tapped = sdkmath.ZeroInt()
	if next.CycleLimit > 0 {
		next.CycleLimit -= uint8(k)
	}
	s.put(&next)
	return &next, nil
}

func latestOf(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}
