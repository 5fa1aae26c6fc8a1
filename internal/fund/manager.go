// Package fund is the ledger engine. It ties funding cycles, tickets, mods
// and reserved accounting together into the operations callers perform, one
// project at a time.
package fund

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/sirupsen/logrus"

	"CycleLedger/internal/ballot"
	"CycleLedger/internal/calculator"
	"CycleLedger/internal/cycle"
	"CycleLedger/internal/governance"
	"CycleLedger/internal/metrics"
	"CycleLedger/internal/mods"
	"CycleLedger/internal/model"
	"CycleLedger/internal/recorder"
	"CycleLedger/internal/reserved"
	"CycleLedger/internal/ticket"
)

// DefaultMaxFee caps the protocol fee at 5%.
const DefaultMaxFee uint16 = 500

// Converter expresses an amount of one currency in another.
type Converter interface {
	Convert(amount sdkmath.Int, from, to model.Currency) (sdkmath.Int, error)
}

type identity struct{}

func (identity) Convert(amount sdkmath.Int, from, to model.Currency) (sdkmath.Int, error) {
	if from != to {
		return sdkmath.Int{}, fmt.Errorf("no converter from %s to %s: %w", from, to, model.ErrInvalidParameters)
	}
	return amount, nil
}

// Options wires a Manager. Nil fields get in-memory defaults.
type Options struct {
	Policy     cycle.Policy
	Ballots    *ballot.Registry
	Governance model.Address
	MaxFee     uint16
	Converter  Converter
	Recorder   recorder.Recorder
	Store      KV
	Clock      func() time.Time
	Log        *logrus.Entry
}

// Manager runs ledger operations. Each project is serialised by its own
// lock; different projects proceed in parallel.
type Manager struct {
	cycles   *cycle.Store
	tickets  *ticket.Ledger
	mods     *mods.Book
	reserved *reserved.Accountant
	auth     *governance.Authority

	converter Converter
	recorder  recorder.Recorder
	store     KV
	clock     func() time.Time
	log       *logrus.Entry
	maxFee    uint16

	mu         sync.Mutex
	projects   map[uint64]*model.Project
	handles    map[string]uint64
	balances   map[uint64]sdkmath.Int
	locks      map[uint64]*sync.Mutex
	nextID     uint64
	feeBalance sdkmath.Int

	saveMu sync.Mutex
}

// NewManager creates a Manager and restores any state found in opts.Store.
func NewManager(opts Options) (*Manager, error) {
	if opts.Converter == nil {
		opts.Converter = identity{}
	}
	if opts.Recorder == nil {
		opts.Recorder = recorder.NewNoopRecorder()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Log == nil {
		l := logrus.New()
		opts.Log = logrus.NewEntry(l)
	}
	if opts.MaxFee == 0 {
		opts.MaxFee = DefaultMaxFee
	}

	m := &Manager{
		cycles:     cycle.NewStore(opts.Policy, opts.Ballots),
		tickets:    ticket.NewLedger(),
		mods:       mods.NewBook(),
		reserved:   reserved.NewAccountant(),
		auth:       governance.NewAuthority(opts.Governance),
		converter:  opts.Converter,
		recorder:   opts.Recorder,
		store:      opts.Store,
		clock:      opts.Clock,
		log:        opts.Log,
		maxFee:     opts.MaxFee,
		projects:   make(map[uint64]*model.Project),
		handles:    make(map[string]uint64),
		balances:   make(map[uint64]sdkmath.Int),
		locks:      make(map[uint64]*sync.Mutex),
		nextID:     1,
		feeBalance: sdkmath.ZeroInt(),
	}
	if m.store != nil {
		if err := m.restore(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) restore() error {
	ledger, projects, err := LoadState(m.store)
	if err != nil {
		return err
	}
	if ledger != nil {
		m.nextID = ledger.NextProjectID
		if !ledger.FeeBalance.IsNil() {
			m.feeBalance = ledger.FeeBalance
		}
		if err := m.cycles.SetFee(ledger.ProtocolFee); err != nil {
			return fmt.Errorf("restore fee: %w", err)
		}
		m.auth.Import(ledger.Governance)
	}
	for _, ps := range projects {
		p := ps.Project
		m.projects[p.ID] = &p
		m.handles[p.Handle] = p.ID
		m.balances[p.ID] = ps.Balance
		if ps.Balance.IsNil() {
			m.balances[p.ID] = sdkmath.ZeroInt()
		}
		m.cycles.Import(p.ID, ps.Cycles)
		m.tickets.Import(p.ID, ps.Tickets)
		m.mods.Import(p.ID, ps.Mods)
		if ps.Tracking.UnreservedIssuedSinceLastPrint.IsNil() {
			ps.Tracking = model.NewTrackingState()
		}
		m.reserved.Import(p.ID, ps.Tracking)
		if p.ID >= m.nextID {
			m.nextID = p.ID + 1
		}
	}
	metrics.Projects.Set(float64(len(m.projects)))
	metrics.ProtocolFee.Set(float64(m.cycles.Fee()))
	m.log.WithField("projects", len(projects)).Info("ledger state restored")
	return nil
}

// Authority exposes the authorization state for read-only callers.
func (m *Manager) Authority() *governance.Authority { return m.auth }

// lock takes the project's lock and returns the project.
func (m *Manager) lock(projectID uint64) (*model.Project, func(), error) {
	m.mu.Lock()
	p, ok := m.projects[projectID]
	l := m.locks[projectID]
	if ok && l == nil {
		l = &sync.Mutex{}
		m.locks[projectID] = l
	}
	m.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("project %d: %w", projectID, model.ErrNotFound)
	}
	l.Lock()
	return p, l.Unlock, nil
}

func (m *Manager) balance(projectID uint64) sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[projectID]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (m *Manager) setBalance(projectID uint64, b sdkmath.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[projectID] = b
}

// observe records the outcome of an operation in metrics.
func (m *Manager) observe(kind model.EventKind, start time.Time, err error) {
	metrics.OperationDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OperationErrors.WithLabelValues(string(kind), errorLabel(err)).Inc()
		return
	}
	metrics.Operations.WithLabelValues(string(kind)).Inc()
}

func errorLabel(err error) string {
	for _, s := range []error{
		model.ErrInvalidParameters, model.ErrUnauthorized, model.ErrInsufficientTarget,
		model.ErrInsufficientBalance, model.ErrInsufficientSupply, model.ErrInvalidClaim,
		model.ErrOverflow, model.ErrNotFound,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "other"
}

// emit hands a committed event to the recorder. A recorder failure never
// undoes the operation.
func (m *Manager) emit(evt *model.Event) {
	if err := m.recorder.Record(evt); err != nil {
		metrics.RecorderFailures.Inc()
		m.log.WithError(err).WithFields(logrus.Fields{"event": evt.ID, "kind": evt.Kind}).Error("failed to record event")
	}
}

// persistProject writes the project's snapshot. Callers hold the project lock.
func (m *Manager) persistProject(projectID uint64) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	p := *m.projects[projectID]
	bal := m.balances[projectID]
	m.mu.Unlock()

	st := &ProjectState{
		Project:  p,
		Balance:  bal,
		Cycles:   m.cycles.Export(projectID),
		Tickets:  m.tickets.Export(projectID),
		Mods:     m.mods.Export(projectID),
		Tracking: m.reserved.Tracking(projectID),
	}
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if err := SaveProject(m.store, st); err != nil {
		metrics.SnapshotFailures.Inc()
		m.log.WithError(err).WithField("project", projectID).Error("failed to save project state")
	}
}

func (m *Manager) persistLedger() {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	st := &LedgerState{
		NextProjectID: m.nextID,
		FeeBalance:    m.feeBalance,
	}
	m.mu.Unlock()
	st.ProtocolFee = m.cycles.Fee()
	st.Governance = m.auth.Export()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if err := SaveLedger(m.store, st); err != nil {
		metrics.SnapshotFailures.Inc()
		m.log.WithError(err).Error("failed to save ledger state")
	}
}

// CreateProject registers a project owned by caller under a unique handle.
func (m *Manager) CreateProject(caller model.Address, handle, uri string) (p model.Project, err error) {
	start := time.Now()
	defer func() { m.observe(model.EventCreateProject, start, err) }()

	handle = strings.TrimSpace(handle)
	if handle == "" || strings.ContainsAny(handle, " \t\n/") {
		return model.Project{}, fmt.Errorf("invalid handle %q: %w", handle, model.ErrInvalidParameters)
	}
	if caller.IsZero() {
		return model.Project{}, fmt.Errorf("owner is the zero address: %w", model.ErrInvalidParameters)
	}

	m.mu.Lock()
	if _, taken := m.handles[handle]; taken {
		m.mu.Unlock()
		return model.Project{}, fmt.Errorf("handle %q is taken: %w", handle, model.ErrInvalidParameters)
	}
	now := m.clock()
	p = model.Project{ID: m.nextID, Owner: caller, Handle: handle, URI: uri, CreatedAt: now}
	m.nextID++
	m.projects[p.ID] = &p
	m.handles[handle] = p.ID
	m.balances[p.ID] = sdkmath.ZeroInt()
	count := len(m.projects)
	m.mu.Unlock()

	if err := m.auth.SetOwner(p.ID, caller); err != nil {
		return model.Project{}, err
	}
	metrics.Projects.Set(float64(count))

	_, unlock, err := m.lock(p.ID)
	if err != nil {
		return model.Project{}, err
	}
	m.persistProject(p.ID)
	unlock()
	m.persistLedger()

	evt := model.NewEvent(p.ID, model.EventCreateProject, caller, now)
	evt.Note = handle
	m.emit(evt)
	m.log.WithFields(logrus.Fields{"project": p.ID, "handle": handle, "owner": caller}).Info("project created")
	return p, nil
}

// Configure queues a new funding cycle configuration with its mods.
func (m *Manager) Configure(caller model.Address, projectID uint64, params model.CycleParams, meta model.CycleMetadata, ticketMods []model.TicketMod) (fc model.FundingCycle, err error) {
	start := time.Now()
	defer func() { m.observe(model.EventConfigure, start, err) }()

	if err := m.auth.Authorize(caller, projectID, governance.ActionConfigure); err != nil {
		return model.FundingCycle{}, err
	}
	_, unlock, err := m.lock(projectID)
	if err != nil {
		return model.FundingCycle{}, err
	}
	defer unlock()

	now := m.clock()
	guarded, err := m.cycles.Configurations(projectID, now)
	if err != nil {
		return model.FundingCycle{}, err
	}
	if err := m.mods.Check(projectID, guarded, ticketMods, now); err != nil {
		return model.FundingCycle{}, err
	}
	if fc, err = m.cycles.Configure(projectID, params, meta, now); err != nil {
		return model.FundingCycle{}, err
	}
	if err := m.mods.Set(projectID, fc.Configuration, guarded, ticketMods, now); err != nil {
		// Checked above under the same lock.
		return model.FundingCycle{}, err
	}
	m.persistProject(projectID)

	evt := model.NewEvent(projectID, model.EventConfigure, caller, now)
	evt.Amounts["target"] = fc.Target.String()
	evt.Amounts["reserved_rate"] = fmt.Sprint(fc.ReservedRate)
	evt.Note = fmt.Sprintf("cycle #%d starting %s", fc.Number, fc.StartAt.Format(time.RFC3339))
	m.emit(evt)
	m.log.WithFields(logrus.Fields{
		"project": projectID, "cycle": fc.Number, "start": fc.StartAt, "reserved_rate": fc.ReservedRate,
	}).Info("funding cycle configured")
	return fc, nil
}

// PayResult describes a committed payment.
type PayResult struct {
	Cycle       model.FundingCycle `json:"cycle"`
	BaseAmount  sdkmath.Int        `json:"base_amount"`
	Weighted    sdkmath.Int        `json:"weighted"`
	Tickets     sdkmath.Int        `json:"tickets"`
	Beneficiary model.Address      `json:"beneficiary"`
}

// Pay credits amount (in currency) to the project and mints the payer's share
// of tickets to beneficiary at the current cycle's weight.
func (m *Manager) Pay(caller model.Address, projectID uint64, amount sdkmath.Int, currency model.Currency, beneficiary model.Address, preferUnstaked bool, memo string) (res PayResult, err error) {
	start := time.Now()
	defer func() { m.observe(model.EventPay, start, err) }()

	if err := m.auth.Authorize(caller, projectID, governance.ActionPay); err != nil {
		return PayResult{}, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return PayResult{}, fmt.Errorf("payment must be positive: %w", model.ErrInvalidParameters)
	}
	if beneficiary.IsZero() {
		beneficiary = caller
	}
	if beneficiary.IsZero() {
		return PayResult{}, fmt.Errorf("no beneficiary: %w", model.ErrInvalidParameters)
	}
	base, err := m.converter.Convert(amount, currency, model.CurrencyBase)
	if err != nil {
		return PayResult{}, err
	}

	_, unlock, err := m.lock(projectID)
	if err != nil {
		return PayResult{}, err
	}
	defer unlock()

	now := m.clock()
	cur, err := m.cycles.Current(projectID, now)
	if err != nil {
		return PayResult{}, err
	}
	weighted, err := calculator.WeightedAmount(base, cur.Weight)
	if err != nil {
		return PayResult{}, err
	}
	payer, commitIssuance, err := m.reserved.PrepareIssuance(projectID, weighted, cur.ReservedRate)
	if err != nil {
		return PayResult{}, err
	}
	commitMint, err := m.tickets.PrepareMint(projectID, beneficiary, payer, preferUnstaked)
	if err != nil {
		return PayResult{}, err
	}
	newBalance, err := calculator.Add(m.balance(projectID), base)
	if err != nil {
		return PayResult{}, err
	}

	commitIssuance()
	commitMint()
	m.setBalance(projectID, newBalance)
	m.persistProject(projectID)

	metrics.TicketsMinted.WithLabelValues("payment").Add(wholeTickets(payer))
	evt := model.NewEvent(projectID, model.EventPay, caller, now)
	evt.Amounts["amount"] = amount.String()
	evt.Amounts["base_amount"] = base.String()
	evt.Amounts["tickets"] = payer.String()
	evt.Note = memo
	m.emit(evt)
	m.log.WithFields(logrus.Fields{
		"project": projectID, "cycle": cur.Number, "amount": base.String(), "tickets": payer.String(), "beneficiary": beneficiary,
	}).Info("payment received")

	return PayResult{Cycle: cur, BaseAmount: base, Weighted: weighted, Tickets: payer, Beneficiary: beneficiary}, nil
}

// PrintReservedTickets mints the reserved tickets owed since the last print
// across the current cycle's mods, the rest going to the owner. Nothing
// printable is a successful no-op.
func (m *Manager) PrintReservedTickets(caller model.Address, projectID uint64) (dist mods.Distribution, err error) {
	start := time.Now()
	defer func() { m.observe(model.EventPrint, start, err) }()

	if err := m.auth.Authorize(caller, projectID, governance.ActionPrint); err != nil {
		return mods.Distribution{}, err
	}
	p, unlock, err := m.lock(projectID)
	if err != nil {
		return mods.Distribution{}, err
	}
	defer unlock()

	now := m.clock()
	cur, err := m.cycles.Current(projectID, now)
	if err != nil {
		return mods.Distribution{}, err
	}
	amount, err := m.reserved.Printable(projectID, cur.ReservedRate)
	if err != nil {
		return mods.Distribution{}, err
	}
	owner, err := m.auth.Owner(projectID)
	if err != nil {
		owner = p.Owner
	}
	if amount.IsZero() {
		return mods.Distribution{Total: amount, Owner: owner, Remainder: amount, At: now}, nil
	}

	dist, err = mods.Distribute(amount, m.mods.Active(projectID, cur.Configuration), owner, now)
	if err != nil {
		return mods.Distribution{}, err
	}
	credits := make([]ticket.Credit, 0, len(dist.Allocations)+1)
	for _, a := range dist.Credits() {
		credits = append(credits, ticket.Credit{Holder: a.Beneficiary, Amount: a.Amount, PreferUnstaked: a.PreferUnstaked})
	}
	commitMint, err := m.tickets.PrepareMintBatch(projectID, credits)
	if err != nil {
		return mods.Distribution{}, err
	}
	commitReset, err := m.reserved.PrepareReset(projectID, amount)
	if err != nil {
		return mods.Distribution{}, err
	}
	commitMint()
	commitReset()
	m.persistProject(projectID)

	metrics.TicketsMinted.WithLabelValues("reserved").Add(wholeTickets(amount))
	evt := model.NewEvent(projectID, model.EventPrint, caller, now)
	evt.Amounts["tickets"] = amount.String()
	evt.Amounts["owner"] = dist.Remainder.String()
	m.emit(evt)
	m.log.WithFields(logrus.Fields{
		"project": projectID, "tickets": amount.String(), "mods": len(dist.Allocations),
	}).Info("reserved tickets printed")
	return dist, nil
}

// TapResult describes a committed withdrawal.
type TapResult struct {
	Cycle       model.FundingCycle `json:"cycle"`
	BaseAmount  sdkmath.Int        `json:"base_amount"`
	Fee         sdkmath.Int        `json:"fee"`
	Net         sdkmath.Int        `json:"net"`
	Beneficiary model.Address      `json:"beneficiary"`
}

// Tap withdraws amount, in the current cycle's currency, for the owner. The
// fee captured by the cycle goes to the protocol.
func (m *Manager) Tap(caller model.Address, projectID uint64, amount sdkmath.Int) (res TapResult, err error) {
	start := time.Now()
	defer func() { m.observe(model.EventTap, start, err) }()

	if err := m.auth.Authorize(caller, projectID, governance.ActionTap); err != nil {
		return TapResult{}, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return TapResult{}, fmt.Errorf("tap amount must be positive: %w", model.ErrInvalidParameters)
	}

	// Convert before locking; re-checked below in case the currency changed.
	peek, err := m.cycles.Current(projectID, m.clock())
	if err != nil {
		return TapResult{}, err
	}
	base, err := m.converter.Convert(amount, peek.Currency, model.CurrencyBase)
	if err != nil {
		return TapResult{}, err
	}

	_, unlock, err := m.lock(projectID)
	if err != nil {
		return TapResult{}, err
	}
	defer unlock()

	now := m.clock()
	after, commitTap, err := m.cycles.PrepareTap(projectID, amount, now)
	if err != nil {
		return TapResult{}, err
	}
	if after.Currency != peek.Currency {
		if base, err = m.converter.Convert(amount, after.Currency, model.CurrencyBase); err != nil {
			return TapResult{}, err
		}
	}
	bal := m.balance(projectID)
	if base.GT(bal) {
		return TapResult{}, fmt.Errorf("tap %s with %s held: %w", base, bal, model.ErrInsufficientBalance)
	}
	fee, err := calculator.ApplyPercent(base, after.Fee)
	if err != nil {
		return TapResult{}, err
	}
	m.mu.Lock()
	feeBalance, err := calculator.Add(m.feeBalance, fee)
	m.mu.Unlock()
	if err != nil {
		return TapResult{}, err
	}
	owner, err := m.auth.Owner(projectID)
	if err != nil {
		return TapResult{}, err
	}

	commitTap()
	m.setBalance(projectID, bal.Sub(base))
	m.mu.Lock()
	m.feeBalance = feeBalance
	m.mu.Unlock()
	m.persistProject(projectID)
	if fee.IsPositive() {
		m.persistLedger()
	}

	net := base.Sub(fee)
	evt := model.NewEvent(projectID, model.EventTap, caller, now)
	evt.Amounts["amount"] = amount.String()
	evt.Amounts["base_amount"] = base.String()
	evt.Amounts["fee"] = fee.String()
	evt.Amounts["net"] = net.String()
	m.emit(evt)
	m.log.WithFields(logrus.Fields{
		"project": projectID, "cycle": after.Number, "amount": base.String(), "fee": fee.String(),
	}).Info("funds tapped")
	return TapResult{Cycle: after, BaseAmount: base, Fee: fee, Net: net, Beneficiary: owner}, nil
}

// overflow is the balance beyond what the current cycle may still tap.
func (m *Manager) overflow(projectID uint64, cur model.FundingCycle) (sdkmath.Int, error) {
	bal := m.balance(projectID)
	remaining := cur.Remaining()
	if remaining.IsZero() {
		return bal, nil
	}
	limit, err := m.converter.Convert(remaining, cur.Currency, model.CurrencyBase)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if limit.GTE(bal) {
		return sdkmath.ZeroInt(), nil
	}
	return bal.Sub(limit), nil
}

// redemptionSupply counts reserved tickets not yet printed as part of the
// supply so redeemers cannot take their share.
func (m *Manager) redemptionSupply(projectID uint64, cur model.FundingCycle) (sdkmath.Int, error) {
	pending, err := m.reserved.Printable(projectID, cur.ReservedRate)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return calculator.Add(m.tickets.TotalSupplyOf(projectID), pending)
}

func (m *Manager) curveRate(projectID uint64, cur model.FundingCycle, now time.Time) (uint16, error) {
	approved, err := m.cycles.ReconfigurationApproved(projectID, now)
	if err != nil {
		return 0, err
	}
	if approved {
		return cur.ReconfigurationBondingCurveRate, nil
	}
	return cur.BondingCurveRate, nil
}

// Claimable returns what redeeming count tickets would pay out now.
func (m *Manager) Claimable(projectID uint64, count sdkmath.Int) (sdkmath.Int, error) {
	_, unlock, err := m.lock(projectID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	defer unlock()
	return m.claimable(projectID, count, m.clock())
}

func (m *Manager) claimable(projectID uint64, count sdkmath.Int, now time.Time) (sdkmath.Int, error) {
	cur, err := m.cycles.Current(projectID, now)
	if err != nil {
		return sdkmath.Int{}, err
	}
	overflow, err := m.overflow(projectID, cur)
	if err != nil {
		return sdkmath.Int{}, err
	}
	supply, err := m.redemptionSupply(projectID, cur)
	if err != nil {
		return sdkmath.Int{}, err
	}
	rate, err := m.curveRate(projectID, cur, now)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return calculator.RedeemableOverflow(count, supply, overflow, rate)
}

// Redeem burns count of caller's tickets for a share of the overflow along
// the bonding curve. It fails if the share is below minReturned.
func (m *Manager) Redeem(caller model.Address, projectID uint64, count, minReturned sdkmath.Int, preferUnstaked bool) (claim sdkmath.Int, err error) {
	start := time.Now()
	defer func() { m.observe(model.EventRedeem, start, err) }()

	if err := m.auth.Authorize(caller, projectID, governance.ActionRedeem); err != nil {
		return sdkmath.Int{}, err
	}
	if count.IsNil() || !count.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("redeem count must be positive: %w", model.ErrInvalidClaim)
	}
	if minReturned.IsNil() {
		minReturned = sdkmath.ZeroInt()
	}
	_, unlock, err := m.lock(projectID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	defer unlock()

	now := m.clock()
	if claim, err = m.claimable(projectID, count, now); err != nil {
		return sdkmath.Int{}, err
	}
	if claim.LT(minReturned) {
		return sdkmath.Int{}, fmt.Errorf("claim %s below minimum %s: %w", claim, minReturned, model.ErrInvalidClaim)
	}
	commitBurn, err := m.tickets.PrepareBurn(projectID, caller, count, preferUnstaked, true)
	if err != nil {
		return sdkmath.Int{}, err
	}
	newBalance, err := calculator.Sub(m.balance(projectID), claim)
	if err != nil {
		return sdkmath.Int{}, err
	}

	commitBurn()
	m.setBalance(projectID, newBalance)
	m.persistProject(projectID)

	evt := model.NewEvent(projectID, model.EventRedeem, caller, now)
	evt.Amounts["tickets"] = count.String()
	evt.Amounts["claim"] = claim.String()
	m.emit(evt)
	m.log.WithFields(logrus.Fields{
		"project": projectID, "holder": caller, "tickets": count.String(), "claim": claim.String(),
	}).Info("tickets redeemed")
	return claim, nil
}

// SetFee sets the protocol fee captured by cycles configured from now on.
func (m *Manager) SetFee(caller model.Address, fee uint16) (err error) {
	start := time.Now()
	defer func() { m.observe(model.EventSetFee, start, err) }()

	if err := m.auth.Authorize(caller, 0, governance.ActionSetFee); err != nil {
		return err
	}
	if fee > m.maxFee {
		return fmt.Errorf("fee %d above maximum %d: %w", fee, m.maxFee, model.ErrInvalidParameters)
	}
	if err := m.cycles.SetFee(fee); err != nil {
		return err
	}
	m.persistLedger()
	metrics.ProtocolFee.Set(float64(fee))

	evt := model.NewEvent(0, model.EventSetFee, caller, m.clock())
	evt.Amounts["fee"] = fmt.Sprint(fee)
	m.emit(evt)
	m.log.WithField("fee", fee).Info("protocol fee set")
	return nil
}

// AppointGovernance names a successor to the protocol governance.
func (m *Manager) AppointGovernance(caller, successor model.Address) error {
	if err := m.auth.Appoint(caller, successor); err != nil {
		return err
	}
	m.persistLedger()
	m.log.WithFields(logrus.Fields{"governance": caller, "successor": successor}).Info("governance appointed")
	return nil
}

// AcceptGovernance completes the handshake for the appointed successor.
func (m *Manager) AcceptGovernance(caller model.Address) (err error) {
	start := time.Now()
	defer func() { m.observe(model.EventAcceptGovernance, start, err) }()

	if err := m.auth.Accept(caller); err != nil {
		return err
	}
	m.persistLedger()
	m.emit(model.NewEvent(0, model.EventAcceptGovernance, caller, m.clock()))
	m.log.WithField("governance", caller).Info("governance accepted")
	return nil
}

// TransferOwnership hands a project to newOwner.
func (m *Manager) TransferOwnership(caller model.Address, projectID uint64, newOwner model.Address) (err error) {
	start := time.Now()
	defer func() { m.observe(model.EventTransferOwnership, start, err) }()

	p, unlock, err := m.lock(projectID)
	if err != nil {
		return err
	}
	defer unlock()
	if err := m.auth.TransferOwnership(caller, projectID, newOwner); err != nil {
		return err
	}
	m.mu.Lock()
	p.Owner = newOwner
	m.mu.Unlock()
	m.persistProject(projectID)
	m.persistLedger()

	evt := model.NewEvent(projectID, model.EventTransferOwnership, caller, m.clock())
	evt.Note = string(newOwner)
	m.emit(evt)
	m.log.WithFields(logrus.Fields{"project": projectID, "owner": newOwner}).Info("ownership transferred")
	return nil
}

// SetOperator grants or revokes operator rights on a project.
func (m *Manager) SetOperator(caller model.Address, projectID uint64, operator model.Address, enabled bool) error {
	_, unlock, err := m.lock(projectID)
	if err != nil {
		return err
	}
	defer unlock()
	if err := m.auth.SetOperator(caller, projectID, operator, enabled); err != nil {
		return err
	}
	m.persistLedger()
	return nil
}

// Stake moves caller's unstaked tickets into the staked pool.
func (m *Manager) Stake(caller model.Address, projectID uint64, amount sdkmath.Int) error {
	return m.holderOp(caller, projectID, func() error { return m.tickets.Stake(projectID, caller, amount) })
}

// Unstake moves caller's staked tickets into the unstaked pool.
func (m *Manager) Unstake(caller model.Address, projectID uint64, amount sdkmath.Int) error {
	return m.holderOp(caller, projectID, func() error { return m.tickets.Unstake(projectID, caller, amount) })
}

// Transfer moves caller's staked tickets to another holder.
func (m *Manager) Transfer(caller model.Address, projectID uint64, to model.Address, amount sdkmath.Int) error {
	return m.holderOp(caller, projectID, func() error { return m.tickets.Transfer(projectID, caller, to, amount) })
}

func (m *Manager) holderOp(caller model.Address, projectID uint64, op func() error) error {
	if err := m.auth.Authorize(caller, projectID, governance.ActionHolder); err != nil {
		return err
	}
	_, unlock, err := m.lock(projectID)
	if err != nil {
		return err
	}
	defer unlock()
	if err := op(); err != nil {
		return err
	}
	m.persistProject(projectID)
	return nil
}

// Project returns a registered project.
func (m *Manager) Project(projectID uint64) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return model.Project{}, fmt.Errorf("project %d: %w", projectID, model.ErrNotFound)
	}
	return *p, nil
}

// ProjectByHandle resolves a handle.
func (m *Manager) ProjectByHandle(handle string) (model.Project, error) {
	m.mu.Lock()
	id, ok := m.handles[handle]
	m.mu.Unlock()
	if !ok {
		return model.Project{}, fmt.Errorf("handle %q: %w", handle, model.ErrNotFound)
	}
	return m.Project(id)
}

// Projects lists every project by id.
func (m *Manager) Projects() []model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CurrentCycle returns the project's active funding cycle.
func (m *Manager) CurrentCycle(projectID uint64) (model.FundingCycle, error) {
	return m.cycles.Current(projectID, m.clock())
}

// QueuedCycle returns the pending reconfiguration, if any.
func (m *Manager) QueuedCycle(projectID uint64) (model.FundingCycle, bool, error) {
	return m.cycles.Queued(projectID, m.clock())
}

// Cycles returns every stored cycle of the project.
func (m *Manager) Cycles(projectID uint64) []model.FundingCycle {
	return m.cycles.History(projectID)
}

// ActiveMods returns the mods of the current cycle.
func (m *Manager) ActiveMods(projectID uint64) ([]model.TicketMod, error) {
	cur, err := m.CurrentCycle(projectID)
	if err != nil {
		return nil, err
	}
	return m.mods.Active(projectID, cur.Configuration), nil
}

// BalanceOf returns a holder's tickets.
func (m *Manager) BalanceOf(projectID uint64, holder model.Address) model.TicketBalance {
	return m.tickets.BalanceOf(projectID, holder)
}

// TotalSupplyOf returns the project's ticket supply.
func (m *Manager) TotalSupplyOf(projectID uint64) sdkmath.Int {
	return m.tickets.TotalSupplyOf(projectID)
}

// Holders lists the project's ticket holders.
func (m *Manager) Holders(projectID uint64) []ticket.Holder {
	return m.tickets.Holders(projectID)
}

// ReservedPrintable returns what PrintReservedTickets would mint now.
func (m *Manager) ReservedPrintable(projectID uint64) (sdkmath.Int, error) {
	cur, err := m.CurrentCycle(projectID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return m.reserved.Printable(projectID, cur.ReservedRate)
}

// Tracking returns the project's reserved-ticket counters.
func (m *Manager) Tracking(projectID uint64) model.TrackingState {
	return m.reserved.Tracking(projectID)
}

// Funds returns the project's balance and current overflow.
func (m *Manager) Funds(projectID uint64) (model.ProjectFunds, error) {
	cur, err := m.CurrentCycle(projectID)
	if err != nil {
		return model.ProjectFunds{}, err
	}
	overflow, err := m.overflow(projectID, cur)
	if err != nil {
		return model.ProjectFunds{}, err
	}
	return model.ProjectFunds{Balance: m.balance(projectID), Overflow: overflow}, nil
}

// FeeBalance returns the protocol fees collected so far.
func (m *Manager) FeeBalance() sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feeBalance
}

// Fee returns the current protocol fee.
func (m *Manager) Fee() uint16 { return m.cycles.Fee() }

// Events replays recorded events when the recorder supports it.
func (m *Manager) Events(projectID uint64, limit int) ([]model.Event, error) {
	r, ok := m.recorder.(recorder.Reader)
	if !ok {
		return nil, nil
	}
	return r.Events(projectID, limit)
}

func wholeTickets(amount sdkmath.Int) float64 {
	f, _ := sdkmath.LegacyNewDecFromIntWithPrec(amount, calculator.WeightDecimals).Float64()
	return f
}
