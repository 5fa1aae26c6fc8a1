// Package cycle owns the funding cycle records of every project: configuration,
// ballot-gated reconfiguration, automatic rollover and weight decay.
package cycle

import (
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/ballot"
	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
)

// DefaultMaxCycleLimit bounds CycleParams.CycleLimit.
const DefaultMaxCycleLimit uint8 = 32

// Policy holds the protocol-wide limits applied to every configuration.
type Policy struct {
	MaxCycleLimit uint8
	// RequireTarget rejects configurations with a duration but no target.
	RequireTarget bool
	InitialWeight sdkmath.Int
}

// DefaultPolicy returns the limits used when none are configured.
func DefaultPolicy() Policy {
	return Policy{MaxCycleLimit: DefaultMaxCycleLimit, InitialWeight: calculator.InitialWeight}
}

type cycleKey struct {
	projectID uint64
	number    uint64
}

// Store is an append-only arena of funding cycles keyed by (project, number)
// with an index from project to its latest number. Derived cycles are
// materialized lazily when a project is read or written after a boundary.
type Store struct {
	mu      sync.Mutex
	policy  Policy
	ballots *ballot.Registry
	fee     uint16
	nextID  uint64

	records map[cycleKey]*model.FundingCycle
	ids     map[uint64]cycleKey
	numbers map[uint64][]uint64
	pending map[uint64]*model.FundingCycle
}

// NewStore creates an empty store. A nil registry means no named ballots.
func NewStore(policy Policy, ballots *ballot.Registry) *Store {
	if policy.MaxCycleLimit == 0 {
		policy.MaxCycleLimit = DefaultMaxCycleLimit
	}
	if policy.InitialWeight.IsNil() || !policy.InitialWeight.IsPositive() {
		policy.InitialWeight = calculator.InitialWeight
	}
	if ballots == nil {
		ballots = ballot.NewRegistry()
	}
	return &Store{
		policy:  policy,
		ballots: ballots,
		nextID:  1,
		records: make(map[cycleKey]*model.FundingCycle),
		ids:     make(map[uint64]cycleKey),
		numbers: make(map[uint64][]uint64),
		pending: make(map[uint64]*model.FundingCycle),
	}
}

// SetFee sets the protocol fee (‱) captured by cycles configured from now on.
func (s *Store) SetFee(fee uint16) error {
	if fee > calculator.MaxPercent {
		return fmt.Errorf("fee %d: %w", fee, model.ErrInvalidParameters)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fee = fee
	return nil
}

// Fee returns the current protocol fee.
func (s *Store) Fee() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fee
}

func (s *Store) validate(params model.CycleParams, meta model.CycleMetadata) error {
	switch {
	case params.Target.IsNil() || params.Target.IsNegative():
		return fmt.Errorf("target must be non-negative: %w", model.ErrInvalidParameters)
	case params.Duration < 0:
		return fmt.Errorf("duration must be non-negative: %w", model.ErrInvalidParameters)
	case s.policy.RequireTarget && params.Duration > 0 && params.Target.IsZero():
		return fmt.Errorf("target is required for a timed cycle: %w", model.ErrInvalidParameters)
	case params.DiscountRate > calculator.MaxDiscountRate:
		return fmt.Errorf("discount rate %d > %d: %w", params.DiscountRate, calculator.MaxDiscountRate, model.ErrInvalidParameters)
	case params.CycleLimit > s.policy.MaxCycleLimit:
		return fmt.Errorf("cycle limit %d > %d: %w", params.CycleLimit, s.policy.MaxCycleLimit, model.ErrInvalidParameters)
	case meta.ReservedRate > calculator.MaxPercent:
		return fmt.Errorf("reserved rate %d > %d: %w", meta.ReservedRate, calculator.MaxPercent, model.ErrInvalidParameters)
	case meta.BondingCurveRate > calculator.MaxPercent:
		return fmt.Errorf("bonding curve rate %d > %d: %w", meta.BondingCurveRate, calculator.MaxPercent, model.ErrInvalidParameters)
	case meta.ReconfigurationBondingCurveRate > calculator.MaxPercent:
		return fmt.Errorf("reconfiguration bonding curve rate %d > %d: %w", meta.ReconfigurationBondingCurveRate, calculator.MaxPercent, model.ErrInvalidParameters)
	}
	if _, ok := s.ballots.Lookup(params.Ballot); !ok {
		return fmt.Errorf("unknown ballot %q: %w", params.Ballot, model.ErrInvalidParameters)
	}
	return nil
}

// Configure records a new configuration for the project. The first
// configuration becomes cycle #1 immediately; later ones are queued as the
// pending successor of the current cycle (replacing any earlier pending
// record) and take effect according to the current cycle's ballot. The
// returned cycle is the pending record, or the active one when it applied at
// once.
func (s *Store) Configure(projectID uint64, params model.CycleParams, meta model.CycleMetadata, now time.Time) (model.FundingCycle, error) {
	if err := s.validate(params, meta); err != nil {
		return model.FundingCycle{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fc := &model.FundingCycle{
		ID:           s.nextID,
		ProjectID:    projectID,
		Ballot:       params.Ballot,
		ConfiguredAt: now,
		StartAt:      now,
		Duration:     params.Duration,
		Target:       params.Target,
		Currency:     params.Currency,
		Fee:          s.fee,
		DiscountRate: params.DiscountRate,
		CycleLimit:   params.CycleLimit,
		Tapped:       sdkmath.ZeroInt(),

		ReservedRate:                    meta.ReservedRate,
		BondingCurveRate:                meta.BondingCurveRate,
		ReconfigurationBondingCurveRate: meta.ReconfigurationBondingCurveRate,
	}
	fc.Configuration = fc.ID
	s.nextID++

	if len(s.numbers[projectID]) == 0 {
		fc.Number = 1
		fc.Weight = s.policy.InitialWeight
		s.put(fc)
		return *fc, nil
	}

	cur, err := s.advance(projectID, now)
	if err != nil {
		return model.FundingCycle{}, err
	}
	fc.Number = cur.Number + 1
	fc.PreviousID = cur.ID
	if fc.Weight, err = calculator.DecayWeight(cur.Weight, cur.DiscountRate); err != nil {
		return model.FundingCycle{}, err
	}
	fc.StartAt = s.earliestStart(cur, fc)
	s.pending[projectID] = fc

	active, err := s.advance(projectID, now)
	if err != nil {
		return model.FundingCycle{}, err
	}
	if active.ID == fc.ID {
		return *active, nil
	}
	return *fc, nil
}

// Current returns the project's active cycle at now, rolling over as needed.
func (s *Store) Current(projectID uint64, now time.Time) (model.FundingCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.advance(projectID, now)
	if err != nil {
		return model.FundingCycle{}, err
	}
	return *cur, nil
}

// Queued returns the pending reconfiguration, if any, as it would start
// after the current cycle.
func (s *Store) Queued(projectID uint64, now time.Time) (model.FundingCycle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.advance(projectID, now)
	if err != nil {
		return model.FundingCycle{}, false, err
	}
	pend, ok := s.pending[projectID]
	if !ok {
		return model.FundingCycle{}, false, nil
	}
	out := *pend
	out.Number = cur.Number + 1
	out.PreviousID = cur.ID
	out.StartAt = s.earliestStart(cur, pend)
	if out.Weight, err = calculator.DecayWeight(cur.Weight, cur.DiscountRate); err != nil {
		return model.FundingCycle{}, false, err
	}
	return out, true, nil
}

// Configurations returns the configuration ids still in play at now: the
// active cycle's and the pending reconfiguration's, if any.
func (s *Store) Configurations(projectID uint64, now time.Time) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.numbers[projectID]) == 0 {
		return nil, nil
	}
	cur, err := s.advance(projectID, now)
	if err != nil {
		return nil, err
	}
	ids := []uint64{cur.Configuration}
	if pend, ok := s.pending[projectID]; ok {
		ids = append(ids, pend.Configuration)
	}
	return ids, nil
}

// ReconfigurationApproved reports whether a pending reconfiguration has been
// approved but has not started yet.
func (s *Store) ReconfigurationApproved(projectID uint64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.advance(projectID, now)
	if err != nil {
		return false, err
	}
	pend, ok := s.pending[projectID]
	if !ok {
		return false, nil
	}
	start := s.earliestStart(cur, pend)
	return s.ballotState(cur, pend, start, now) == ballot.Approved, nil
}

// Get returns a stored cycle by id.
func (s *Store) Get(id uint64) (model.FundingCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.ids[id]
	if !ok {
		return model.FundingCycle{}, fmt.Errorf("funding cycle %d: %w", id, model.ErrNotFound)
	}
	return *s.records[key], nil
}

// History returns every stored cycle of a project in number order.
func (s *Store) History(projectID uint64) []model.FundingCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	nums := s.numbers[projectID]
	out := make([]model.FundingCycle, 0, len(nums))
	for _, n := range nums {
		out = append(out, *s.records[cycleKey{projectID, n}])
	}
	return out
}

// PrepareTap validates a withdrawal of amount (in the cycle currency) against
// the current cycle's remaining target. Nothing changes until commit is called.
func (s *Store) PrepareTap(projectID uint64, amount sdkmath.Int, now time.Time) (model.FundingCycle, func(), error) {
	if amount.IsNil() || !amount.IsPositive() {
		return model.FundingCycle{}, nil, fmt.Errorf("tap amount must be positive: %w", model.ErrInvalidParameters)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.advance(projectID, now)
	if err != nil {
		return model.FundingCycle{}, nil, err
	}
	tapped, err := calculator.Add(cur.Tapped, amount)
	if err != nil {
		return model.FundingCycle{}, nil, err
	}
	if tapped.GT(cur.Target) {
		return model.FundingCycle{}, nil, fmt.Errorf("tap %s with %s of %s left: %w",
			amount, cur.Remaining(), cur.Target, model.ErrInsufficientTarget)
	}

	key := cycleKey{projectID, cur.Number}
	after := *cur
	after.Tapped = tapped
	commit := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records[key].Tapped = tapped
	}
	return after, commit, nil
}

// Tap raises the current cycle's tapped amount.
func (s *Store) Tap(projectID uint64, amount sdkmath.Int, now time.Time) (model.FundingCycle, error) {
	fc, commit, err := s.PrepareTap(projectID, amount, now)
	if err != nil {
		return model.FundingCycle{}, err
	}
	commit()
	return fc, nil
}

// Projects lists every project with at least one cycle.
func (s *Store) Projects() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.numbers))
	for id := range s.numbers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) put(fc *model.FundingCycle) {
	key := cycleKey{fc.ProjectID, fc.Number}
	s.records[key] = fc
	s.ids[fc.ID] = key
	s.numbers[fc.ProjectID] = append(s.numbers[fc.ProjectID], fc.Number)
}

func (s *Store) latest(projectID uint64) (*model.FundingCycle, bool) {
	nums := s.numbers[projectID]
	if len(nums) == 0 {
		return nil, false
	}
	return s.records[cycleKey{projectID, nums[len(nums)-1]}], true
}
