// Package mods splits reserved-ticket batches across a project's beneficiary
// mods and keeps the mods configured for each funding cycle configuration.
package mods

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
)

// Allocation is the part of a batch credited to one beneficiary.
type Allocation struct {
	Beneficiary    model.Address `json:"beneficiary"`
	Amount         sdkmath.Int   `json:"amount"`
	PreferUnstaked bool          `json:"prefer_unstaked"`
}

// Distribution is the breakdown of one batch. Mod shares plus Remainder
// always equal Total.
type Distribution struct {
	Total       sdkmath.Int  `json:"total"`
	Allocations []Allocation `json:"allocations"`
	// Remainder goes to the owner: flooring dust plus the shares of mods
	// with no beneficiary.
	Owner     model.Address `json:"owner"`
	Remainder sdkmath.Int   `json:"remainder"`
	At        time.Time     `json:"at"`
}

// Distribute computes floor(batch * percent / 10000) for each mod in list
// order. It is a pure calculation; the caller mints the result.
func Distribute(batch sdkmath.Int, mods []model.TicketMod, owner model.Address, ts time.Time) (Distribution, error) {
	if batch.IsNil() || batch.IsNegative() {
		return Distribution{}, fmt.Errorf("batch must be non-negative: %w", model.ErrInvalidParameters)
	}
	if err := validatePercents(mods); err != nil {
		return Distribution{}, err
	}

	d := Distribution{Total: batch, Owner: owner, At: ts}
	allocated := sdkmath.ZeroInt()
	for _, m := range mods {
		if m.Beneficiary.IsZero() {
			continue
		}
		share, err := calculator.ApplyPercent(batch, m.Percent)
		if err != nil {
			return Distribution{}, err
		}
		if share.IsZero() {
			continue
		}
		d.Allocations = append(d.Allocations, Allocation{
			Beneficiary:    m.Beneficiary,
			Amount:         share,
			PreferUnstaked: m.PreferUnstaked,
		})
		allocated = allocated.Add(share)
	}
	d.Remainder = batch.Sub(allocated)
	return d, nil
}

// Credits flattens the distribution in mint order, owner last.
func (d Distribution) Credits() []Allocation {
	out := make([]Allocation, 0, len(d.Allocations)+1)
	out = append(out, d.Allocations...)
	if d.Remainder.IsPositive() {
		out = append(out, Allocation{Beneficiary: d.Owner, Amount: d.Remainder})
	}
	return out
}

func validatePercents(mods []model.TicketMod) error {
	var sum uint32
	for i, m := range mods {
		if m.Percent == 0 || m.Percent > calculator.MaxPercent {
			return fmt.Errorf("mod %d percent %d: %w", i, m.Percent, model.ErrInvalidParameters)
		}
		sum += uint32(m.Percent)
	}
	if sum > uint32(calculator.MaxPercent) {
		return fmt.Errorf("mod percents sum to %d: %w", sum, model.ErrInvalidParameters)
	}
	return nil
}
