package mods

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"CycleLedger/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const owner model.Address = "owner"

func sum(d Distribution) sdkmath.Int {
	total := d.Remainder
	for _, a := range d.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

func TestDistribute_Shares(t *testing.T) {
	mods := []model.TicketMod{
		{Percent: 2500, Beneficiary: "a"},
		{Percent: 3333, Beneficiary: "b", PreferUnstaked: true},
	}
	d, err := Distribute(sdkmath.NewInt(1001), mods, owner, t0)
	require.NoError(t, err)
	require.Len(t, d.Allocations, 2)
	require.Equal(t, int64(250), d.Allocations[0].Amount.Int64())
	require.Equal(t, int64(333), d.Allocations[1].Amount.Int64())
	require.True(t, d.Allocations[1].PreferUnstaked)
	require.Equal(t, int64(418), d.Remainder.Int64())
	require.True(t, sum(d).Equal(d.Total))

	credits := d.Credits()
	require.Len(t, credits, 3)
	require.Equal(t, owner, credits[2].Beneficiary)
}

func TestDistribute_ZeroBeneficiaryFoldsIntoOwner(t *testing.T) {
	mods := []model.TicketMod{
		{Percent: 5000, Beneficiary: model.ZeroAddress},
		{Percent: 5000, Beneficiary: "a"},
	}
	d, err := Distribute(sdkmath.NewInt(100), mods, owner, t0)
	require.NoError(t, err)
	require.Len(t, d.Allocations, 1)
	require.Equal(t, int64(50), d.Allocations[0].Amount.Int64())
	require.Equal(t, int64(50), d.Remainder.Int64())
}

func TestDistribute_NoMods(t *testing.T) {
	d, err := Distribute(sdkmath.NewInt(77), nil, owner, t0)
	require.NoError(t, err)
	require.Empty(t, d.Allocations)
	require.Equal(t, int64(77), d.Remainder.Int64())

	d, err = Distribute(sdkmath.ZeroInt(), []model.TicketMod{{Percent: 10000, Beneficiary: "a"}}, owner, t0)
	require.NoError(t, err)
	require.Empty(t, d.Credits())
}

func TestDistribute_Invalid(t *testing.T) {
	_, err := Distribute(sdkmath.NewInt(-1), nil, owner, t0)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	_, err = Distribute(sdkmath.NewInt(10), []model.TicketMod{
		{Percent: 6000, Beneficiary: "a"},
		{Percent: 4001, Beneficiary: "b"},
	}, owner, t0)
	require.ErrorIs(t, err, model.ErrInvalidParameters)

	_, err = Distribute(sdkmath.NewInt(10), []model.TicketMod{{Percent: 0, Beneficiary: "a"}}, owner, t0)
	require.ErrorIs(t, err, model.ErrInvalidParameters)
}

func TestDistribute_Completeness(t *testing.T) {
	percents := [][]uint16{
		{1}, {9999}, {10000}, {3333, 3333, 3333}, {1, 2, 3, 4, 5}, {7000, 2999, 1}, {1250, 1250, 1250, 1250},
	}
	for _, ps := range percents {
		mods := make([]model.TicketMod, len(ps))
		for i, p := range ps {
			mods[i] = model.TicketMod{Percent: p, Beneficiary: model.Address(string(rune('a' + i)))}
		}
		for _, batch := range []int64{0, 1, 7, 999, 10001, 123456789} {
			d, err := Distribute(sdkmath.NewInt(batch), mods, owner, t0)
			require.NoError(t, err)
			require.True(t, sum(d).Equal(sdkmath.NewInt(batch)), "percents %v batch %d", ps, batch)
			require.False(t, d.Remainder.IsNegative())
		}
	}
}
