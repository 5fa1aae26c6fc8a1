package fund

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"CycleLedger/internal/ballot"
	"CycleLedger/internal/collector"
	"CycleLedger/internal/cycle"
	"CycleLedger/internal/governance"
	"CycleLedger/internal/model"
	"CycleLedger/internal/storage"
)

const (
	gov   model.Address = "gov"
	owner model.Address = "owner"
	alice model.Address = "alice"
	bob   model.Address = "bob"
)

const day = 24 * time.Hour

var t0 = time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)

// units returns v whole currency units at 18 decimals.
func units(v int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(v, 18) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captured struct {
	mu     sync.Mutex
	events []*model.Event
}

func (c *captured) Record(evt *model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *captured) Close() error { return nil }

func (c *captured) kinds() []model.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.EventKind, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Kind)
	}
	return out
}

func quiet() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fixture struct {
	m   *Manager
	clk *clock
	rec *captured
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	clk := &clock{now: t0}
	rec := &captured{}
	opts.Governance = gov
	opts.Clock = clk.Now
	opts.Recorder = rec
	opts.Log = quiet()
	m, err := NewManager(opts)
	require.NoError(t, err)
	return &fixture{m: m, clk: clk, rec: rec}
}

func cycleParams(target sdkmath.Int) model.CycleParams {
	return model.CycleParams{Target: target, Duration: 30 * day, DiscountRate: 30}
}

// project creates a project and its first cycle.
func (f *fixture) project(t *testing.T, handle string, target sdkmath.Int, meta model.CycleMetadata, ticketMods []model.TicketMod) uint64 {
	t.Helper()
	p, err := f.m.CreateProject(owner, handle, "ipfs://"+handle)
	require.NoError(t, err)
	_, err = f.m.Configure(owner, p.ID, cycleParams(target), meta, ticketMods)
	require.NoError(t, err)
	return p.ID
}

func TestCreateProject(t *testing.T) {
	f := newFixture(t, Options{})

	a, err := f.m.CreateProject(owner, "alpha", "")
	require.NoError(t, err)
	b, err := f.m.CreateProject(alice, "beta", "")
	require.NoError(t, err)
	require.Equal(t, uint64(1), a.ID)
	require.Equal(t, uint64(2), b.ID)

	_, err = f.m.CreateProject(bob, "alpha", "")
	require.ErrorIs(t, err, model.ErrInvalidParameters)
	_, err = f.m.CreateProject(bob, "  ", "")
	require.ErrorIs(t, err, model.ErrInvalidParameters)
	_, err = f.m.CreateProject(model.ZeroAddress, "gamma", "")
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	got, err := f.m.ProjectByHandle("beta")
	require.NoError(t, err)
	require.Equal(t, alice, got.Owner)
	require.Len(t, f.m.Projects(), 2)

	_, err = f.m.Project(9)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestConfigure_Authorization(t *testing.T) {
	f := newFixture(t, Options{})
	p, err := f.m.CreateProject(owner, "alpha", "")
	require.NoError(t, err)

	_, err = f.m.Configure(alice, p.ID, cycleParams(units(10)), model.CycleMetadata{}, nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, f.m.SetOperator(owner, p.ID, alice, true))
	fc, err := f.m.Configure(alice, p.ID, cycleParams(units(10)), model.CycleMetadata{ReservedRate: 1000}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), fc.Number)
	require.True(t, fc.StartAt.Equal(t0))

	_, err = f.m.Configure(owner, 42, cycleParams(units(10)), model.CycleMetadata{}, nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestPay_MintsAtCurrentWeight(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 1000}, nil)

	res, err := f.m.Pay(alice, id, units(1), model.CurrencyBase, model.ZeroAddress, false, "hello")
	require.NoError(t, err)
	require.Equal(t, alice, res.Beneficiary)
	// 1 unit at 10^6 tickets per unit, 10% reserved.
	require.Equal(t, units(1_000_000).String(), res.Weighted.String())
	require.Equal(t, units(900_000).String(), res.Tickets.String())

	bal := f.m.BalanceOf(id, alice)
	require.Equal(t, units(900_000).String(), bal.Staked.String())
	require.True(t, bal.Unstaked.IsZero())

	printable, err := f.m.ReservedPrintable(id)
	require.NoError(t, err)
	require.Equal(t, units(100_000).String(), printable.String())

	funds, err := f.m.Funds(id)
	require.NoError(t, err)
	require.Equal(t, units(1).String(), funds.Balance.String())
	require.True(t, funds.Overflow.IsZero())

	_, err = f.m.Pay(alice, id, sdkmath.ZeroInt(), model.CurrencyBase, bob, false, "")
	require.ErrorIs(t, err, model.ErrInvalidParameters)
	_, err = f.m.Pay(alice, 42, units(1), model.CurrencyBase, bob, false, "")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.Equal(t, []model.EventKind{model.EventCreateProject, model.EventConfigure, model.EventPay}, f.rec.kinds())
}

func TestPay_DecayedWeightAfterRollover(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)

	f.clk.Advance(30*day + time.Hour)
	res, err := f.m.Pay(alice, id, units(1), model.CurrencyBase, alice, true, "")
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Cycle.Number)
	require.Equal(t, units(970_000).String(), res.Tickets.String())
	require.Equal(t, units(970_000).String(), f.m.BalanceOf(id, alice).Unstaked.String())
}

func TestPay_ConvertsCurrency(t *testing.T) {
	oracle := collector.NewOracle(nil, nil, 0, quiet())
	// 2000 USD per base unit.
	oracle.Set(model.CurrencyUSD, units(2000))
	f := newFixture(t, Options{Converter: oracle})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)

	res, err := f.m.Pay(alice, id, units(4000), model.CurrencyUSD, alice, false, "")
	require.NoError(t, err)
	require.Equal(t, units(2).String(), res.BaseAmount.String())
	require.Equal(t, units(2_000_000).String(), res.Tickets.String())

	_, err = f.m.Pay(alice, id, units(1), model.Currency(7), alice, false, "")
	require.ErrorIs(t, err, collector.ErrNoPrice)
}

func TestPrintReservedTickets(t *testing.T) {
	f := newFixture(t, Options{})
	ticketMods := []model.TicketMod{
		{Percent: 5000, Beneficiary: bob},
		{Percent: 2500, Beneficiary: alice, PreferUnstaked: true},
	}
	id := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 2000}, ticketMods)

	_, err := f.m.Pay(alice, id, units(1), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)

	// Anyone may print.
	dist, err := f.m.PrintReservedTickets(bob, id)
	require.NoError(t, err)
	require.Equal(t, units(200_000).String(), dist.Total.String())
	require.Equal(t, units(100_000).String(), f.m.BalanceOf(id, bob).Staked.String())
	require.Equal(t, units(50_000).String(), f.m.BalanceOf(id, alice).Unstaked.String())
	require.Equal(t, units(50_000).String(), f.m.BalanceOf(id, owner).Staked.String())
	require.Equal(t, units(1_000_000).String(), f.m.TotalSupplyOf(id).String())

	// Nothing left: a second print is a no-op.
	dist, err = f.m.PrintReservedTickets(bob, id)
	require.NoError(t, err)
	require.True(t, dist.Total.IsZero())
	require.Equal(t, units(1_000_000).String(), f.m.TotalSupplyOf(id).String())

	tracking := f.m.Tracking(id)
	require.Equal(t, units(200_000).String(), tracking.TotalReservedPrinted.String())
}

func TestPrintReservedTickets_FullyReserved(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 10000}, nil)

	res, err := f.m.Pay(alice, id, units(1), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	require.True(t, res.Tickets.IsZero())

	dist, err := f.m.PrintReservedTickets(owner, id)
	require.NoError(t, err)
	require.Equal(t, units(1_000_000).String(), dist.Total.String())
	require.Equal(t, units(1_000_000).String(), f.m.BalanceOf(id, owner).Total().String())
}

func TestConfigure_LockedModsMustBeCarried(t *testing.T) {
	f := newFixture(t, Options{})
	locked := []model.TicketMod{{Percent: 3000, Beneficiary: bob, LockedUntil: t0.Add(90 * day)}}
	id := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 1000}, locked)

	_, err := f.m.Configure(owner, id, cycleParams(units(10)), model.CycleMetadata{}, nil)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	_, hasQueued, err := f.m.QueuedCycle(id)
	require.NoError(t, err)
	require.False(t, hasQueued)

	raised := []model.TicketMod{{Percent: 4000, Beneficiary: bob, LockedUntil: t0.Add(90 * day)}}
	_, err = f.m.Configure(owner, id, cycleParams(units(10)), model.CycleMetadata{}, raised)
	require.NoError(t, err)
}

func TestConfigure_SameInstantKeepsActiveMods(t *testing.T) {
	f := newFixture(t, Options{})
	toBob := []model.TicketMod{{Percent: 10000, Beneficiary: bob}}
	id := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 2000}, toBob)

	// Queued for the next cycle within the same instant.
	toAlice := []model.TicketMod{{Percent: 10000, Beneficiary: alice}}
	queued, err := f.m.Configure(owner, id, cycleParams(units(10)), model.CycleMetadata{ReservedRate: 2000}, toAlice)
	require.NoError(t, err)
	require.Equal(t, uint64(2), queued.Number)

	active, err := f.m.ActiveMods(id)
	require.NoError(t, err)
	require.Equal(t, toBob, active)

	_, err = f.m.Pay(alice, id, units(1), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	dist, err := f.m.PrintReservedTickets(owner, id)
	require.NoError(t, err)
	require.Equal(t, units(200_000).String(), dist.Total.String())
	require.Equal(t, units(200_000).String(), f.m.BalanceOf(id, bob).Total().String())
	require.Equal(t, units(800_000).String(), f.m.BalanceOf(id, alice).Total().String())

	// The queued mods take over once the cycle rolls.
	f.clk.Advance(30 * day)
	active, err = f.m.ActiveMods(id)
	require.NoError(t, err)
	require.Equal(t, toAlice, active)
}

type rejectBallot struct{}

func (rejectBallot) State(_, _, _ time.Time) ballot.State { return ballot.Failed }
func (rejectBallot) Duration() time.Duration              { return 0 }

func TestConfigure_DiscardedLocksDoNotBind(t *testing.T) {
	registry := ballot.NewRegistry()
	require.NoError(t, registry.Register("reject", rejectBallot{}))
	f := newFixture(t, Options{Ballots: registry})

	p, err := f.m.CreateProject(owner, "alpha", "")
	require.NoError(t, err)
	params := cycleParams(units(10))
	params.Ballot = "reject"
	_, err = f.m.Configure(owner, p.ID, params, model.CycleMetadata{}, nil)
	require.NoError(t, err)

	locked := []model.TicketMod{{Percent: 3000, Beneficiary: bob, LockedUntil: t0.Add(90 * day)}}
	_, err = f.m.Configure(owner, p.ID, params, model.CycleMetadata{}, locked)
	require.NoError(t, err)
	// While queued its locks bind.
	_, err = f.m.Configure(owner, p.ID, params, model.CycleMetadata{}, nil)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	// The ballot rejects it at the boundary.
	f.clk.Advance(30 * day)
	_, hasQueued, err := f.m.QueuedCycle(p.ID)
	require.NoError(t, err)
	require.False(t, hasQueued)

	_, err = f.m.Configure(owner, p.ID, params, model.CycleMetadata{}, nil)
	require.NoError(t, err)
}

func TestTap(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.m.SetFee(gov, 100))
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)

	_, err := f.m.Pay(alice, id, units(15), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)

	_, err = f.m.Tap(alice, id, units(1))
	require.ErrorIs(t, err, model.ErrUnauthorized)

	res, err := f.m.Tap(owner, id, units(4))
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(4, 16).String(), res.Fee.String())
	require.Equal(t, units(4).Sub(res.Fee).String(), res.Net.String())
	require.Equal(t, owner, res.Beneficiary)
	require.Equal(t, units(4).String(), res.Cycle.Tapped.String())
	require.Equal(t, res.Fee.String(), f.m.FeeBalance().String())

	funds, err := f.m.Funds(id)
	require.NoError(t, err)
	require.Equal(t, units(11).String(), funds.Balance.String())
	// 6 of the target are still tappable.
	require.Equal(t, units(5).String(), funds.Overflow.String())

	_, err = f.m.Tap(owner, id, units(7))
	require.ErrorIs(t, err, model.ErrInsufficientTarget)
	_, err = f.m.Tap(owner, id, sdkmath.ZeroInt())
	require.ErrorIs(t, err, model.ErrInvalidParameters)
}

func TestTap_BalanceBelowTarget(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)
	_, err := f.m.Pay(alice, id, units(2), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)

	_, err = f.m.Tap(owner, id, units(3))
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	cur, err := f.m.CurrentCycle(id)
	require.NoError(t, err)
	require.True(t, cur.Tapped.IsZero())
}

func TestSetFee(t *testing.T) {
	f := newFixture(t, Options{})
	require.ErrorIs(t, f.m.SetFee(owner, 10), model.ErrUnauthorized)
	require.ErrorIs(t, f.m.SetFee(gov, DefaultMaxFee+1), model.ErrInvalidParameters)
	require.NoError(t, f.m.SetFee(gov, 250))
	require.Equal(t, uint16(250), f.m.Fee())

	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)
	cur, err := f.m.CurrentCycle(id)
	require.NoError(t, err)
	require.Equal(t, uint16(250), cur.Fee)

	// Later fee changes don't touch configured cycles.
	require.NoError(t, f.m.SetFee(gov, 0))
	cur, err = f.m.CurrentCycle(id)
	require.NoError(t, err)
	require.Equal(t, uint16(250), cur.Fee)
}

func TestGovernanceHandover(t *testing.T) {
	f := newFixture(t, Options{})

	require.ErrorIs(t, f.m.AppointGovernance(alice, bob), model.ErrUnauthorized)
	require.NoError(t, f.m.AppointGovernance(gov, bob))
	require.ErrorIs(t, f.m.AcceptGovernance(alice), model.ErrUnauthorized)
	require.NoError(t, f.m.AcceptGovernance(bob))

	require.ErrorIs(t, f.m.SetFee(gov, 10), model.ErrUnauthorized)
	require.NoError(t, f.m.SetFee(bob, 10))
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)
	require.NoError(t, f.m.SetOperator(owner, id, alice, true))

	require.ErrorIs(t, f.m.TransferOwnership(alice, id, bob), model.ErrUnauthorized)
	require.NoError(t, f.m.TransferOwnership(owner, id, bob))

	p, err := f.m.Project(id)
	require.NoError(t, err)
	require.Equal(t, bob, p.Owner)

	// Operators of the previous owner are dropped.
	_, err = f.m.Configure(alice, id, cycleParams(units(1)), model.CycleMetadata{}, nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = f.m.Configure(owner, id, cycleParams(units(1)), model.CycleMetadata{}, nil)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = f.m.Configure(bob, id, cycleParams(units(1)), model.CycleMetadata{}, nil)
	require.NoError(t, err)
}

func TestRedeem(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", sdkmath.ZeroInt(), model.CycleMetadata{BondingCurveRate: 10000}, nil)

	_, err := f.m.Pay(alice, id, units(10), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	_, err = f.m.Pay(bob, id, units(10), model.CurrencyBase, bob, false, "")
	require.NoError(t, err)

	held := f.m.BalanceOf(id, alice).Total()
	claimable, err := f.m.Claimable(id, held)
	require.NoError(t, err)
	require.Equal(t, units(10).String(), claimable.String())

	_, err = f.m.Redeem(alice, id, held, units(11), false)
	require.ErrorIs(t, err, model.ErrInvalidClaim)

	claim, err := f.m.Redeem(alice, id, held, units(10), false)
	require.NoError(t, err)
	require.Equal(t, units(10).String(), claim.String())
	require.True(t, f.m.BalanceOf(id, alice).Total().IsZero())

	funds, err := f.m.Funds(id)
	require.NoError(t, err)
	require.Equal(t, units(10).String(), funds.Balance.String())

	_, err = f.m.Redeem(alice, id, units(1), sdkmath.ZeroInt(), false)
	require.ErrorIs(t, err, model.ErrInsufficientBalance)
	_, err = f.m.Redeem(bob, id, sdkmath.ZeroInt(), sdkmath.ZeroInt(), false)
	require.ErrorIs(t, err, model.ErrInvalidClaim)
}

func TestRedeem_UnprintedReservedCountsInSupply(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", sdkmath.ZeroInt(), model.CycleMetadata{ReservedRate: 5000, BondingCurveRate: 10000}, nil)

	res, err := f.m.Pay(alice, id, units(10), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)

	claim, err := f.m.Redeem(alice, id, res.Tickets, sdkmath.ZeroInt(), false)
	require.NoError(t, err)
	require.Equal(t, units(5).String(), claim.String())
}

func TestRedeem_CurveDiscountsPartialClaims(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", sdkmath.ZeroInt(), model.CycleMetadata{BondingCurveRate: 5000}, nil)

	_, err := f.m.Pay(alice, id, units(10), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	_, err = f.m.Pay(bob, id, units(10), model.CurrencyBase, bob, false, "")
	require.NoError(t, err)

	// base 10, times (0.5*S + 0.5*S/2)/S = 0.75.
	claim, err := f.m.Redeem(alice, id, f.m.BalanceOf(id, alice).Total(), sdkmath.ZeroInt(), false)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(75, 17).String(), claim.String())
}

func TestRedeem_ReconfigurationCurve(t *testing.T) {
	registry := ballot.NewRegistry()
	require.NoError(t, registry.Register("week", ballot.Timelock{Delay: 7 * day}))
	f := newFixture(t, Options{Ballots: registry})

	p, err := f.m.CreateProject(owner, "alpha", "")
	require.NoError(t, err)
	params := cycleParams(sdkmath.ZeroInt())
	params.Ballot = "week"
	meta := model.CycleMetadata{BondingCurveRate: 10000, ReconfigurationBondingCurveRate: 5000}
	_, err = f.m.Configure(owner, p.ID, params, meta, nil)
	require.NoError(t, err)

	_, err = f.m.Pay(alice, p.ID, units(10), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	_, err = f.m.Pay(bob, p.ID, units(10), model.CurrencyBase, bob, false, "")
	require.NoError(t, err)
	half := f.m.BalanceOf(p.ID, alice).Total()

	linear, err := f.m.Claimable(p.ID, half)
	require.NoError(t, err)
	require.Equal(t, units(10).String(), linear.String())

	f.clk.Advance(day)
	_, err = f.m.Configure(owner, p.ID, params, meta, nil)
	require.NoError(t, err)
	f.clk.Advance(7 * day)

	discounted, err := f.m.Claimable(p.ID, half)
	require.NoError(t, err)
	require.Equal(t, sdkmath.NewIntWithDecimal(75, 17).String(), discounted.String())
}

func TestStakeUnstakeTransfer(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)
	_, err := f.m.Pay(alice, id, units(1), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)

	require.NoError(t, f.m.Unstake(alice, id, units(400_000)))
	require.NoError(t, f.m.Transfer(alice, id, bob, units(100_000)))
	require.ErrorIs(t, f.m.Stake(bob, id, units(1)), model.ErrInsufficientBalance)
	require.NoError(t, f.m.Stake(alice, id, units(400_000)))

	require.Equal(t, units(900_000).String(), f.m.BalanceOf(id, alice).Total().String())
	require.Equal(t, units(100_000).String(), f.m.BalanceOf(id, bob).Staked.String())
	require.Len(t, f.m.Holders(id), 2)
}

func TestHolderOperations_Authorization(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.project(t, "alpha", units(10), model.CycleMetadata{}, nil)

	_, err := f.m.Pay(model.ZeroAddress, id, units(1), model.CurrencyBase, alice, false, "")
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = f.m.Redeem(model.ZeroAddress, id, units(1), sdkmath.ZeroInt(), false)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	require.ErrorIs(t, f.m.Stake(model.ZeroAddress, id, units(1)), model.ErrUnauthorized)
	require.ErrorIs(t, f.m.Unstake(model.ZeroAddress, id, units(1)), model.ErrUnauthorized)
	require.ErrorIs(t, f.m.Transfer(model.ZeroAddress, id, bob, units(1)), model.ErrUnauthorized)
	require.True(t, f.m.TotalSupplyOf(id).IsZero())

	f.m.Authority().Restrict(governance.ActionPay, func(caller model.Address, _ uint64) bool { return caller != bob })
	_, err = f.m.Pay(bob, id, units(1), model.CurrencyBase, bob, false, "")
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = f.m.Pay(alice, id, units(1), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	require.NoError(t, f.m.Unstake(alice, id, units(1)))
}

func TestConcurrentPayments(t *testing.T) {
	f := newFixture(t, Options{})
	a := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 1000}, nil)
	b := f.project(t, "beta", units(10), model.CycleMetadata{}, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := a
			if i%2 == 1 {
				id = b
			}
			_, err := f.m.Pay(alice, id, units(1), model.CurrencyBase, bob, false, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, units(18_000_000).String(), f.m.TotalSupplyOf(a).String())
	require.Equal(t, units(20_000_000).String(), f.m.TotalSupplyOf(b).String())
	printable, err := f.m.ReservedPrintable(a)
	require.NoError(t, err)
	require.Equal(t, units(2_000_000).String(), printable.String())
}

func TestRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store, err := storage.OpenFileStore(path)
	require.NoError(t, err)

	f := newFixture(t, Options{Store: store, Policy: cycle.DefaultPolicy()})
	require.NoError(t, f.m.SetFee(gov, 100))
	ticketMods := []model.TicketMod{{Percent: 5000, Beneficiary: bob}}
	id := f.project(t, "alpha", units(10), model.CycleMetadata{ReservedRate: 2000}, ticketMods)
	_, err = f.m.Pay(alice, id, units(5), model.CurrencyBase, alice, false, "")
	require.NoError(t, err)
	_, err = f.m.Tap(owner, id, units(2))
	require.NoError(t, err)

	reopened, err := storage.OpenFileStore(path)
	require.NoError(t, err)
	g := newFixture(t, Options{Store: reopened})

	require.Equal(t, uint16(100), g.m.Fee())
	require.Equal(t, f.m.FeeBalance().String(), g.m.FeeBalance().String())
	p, err := g.m.ProjectByHandle("alpha")
	require.NoError(t, err)
	require.Equal(t, owner, p.Owner)
	require.Equal(t, f.m.TotalSupplyOf(id).String(), g.m.TotalSupplyOf(id).String())
	require.Equal(t, f.m.BalanceOf(id, alice).Staked.String(), g.m.BalanceOf(id, alice).Staked.String())

	cur, err := g.m.CurrentCycle(id)
	require.NoError(t, err)
	require.Equal(t, units(2).String(), cur.Tapped.String())

	printable, err := g.m.ReservedPrintable(id)
	require.NoError(t, err)
	require.Equal(t, units(1_000_000).String(), printable.String())

	dist, err := g.m.PrintReservedTickets(owner, id)
	require.NoError(t, err)
	require.Len(t, dist.Allocations, 1)

	next, err := g.m.CreateProject(alice, "beta", "")
	require.NoError(t, err)
	require.Equal(t, id+1, next.ID)
}
