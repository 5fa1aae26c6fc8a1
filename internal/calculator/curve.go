package calculator

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/model"
)

// RedeemableOverflow computes how much of overflow a holder receives for
// redeeming claim out of supply tickets at the given bonding curve rate (‱).
//
//	base       = floor(overflow * claim / supply)
//	redeemable = floor(base * (rate*supply + claim*(10000-rate)) / (supply*10000))
//
// At rate 10000 this is the linear share; lower rates discount partial
// redemptions and converge to base as claim approaches supply.
func RedeemableOverflow(claim, supply, overflow sdkmath.Int, rate uint16) (sdkmath.Int, error) {
	if !supply.IsPositive() {
		return sdkmath.Int{}, model.ErrInsufficientSupply
	}
	if !claim.IsPositive() || claim.GT(supply) {
		return sdkmath.Int{}, fmt.Errorf("claim %s of supply %s: %w", claim, supply, model.ErrInvalidClaim)
	}
	if rate > MaxPercent {
		return sdkmath.Int{}, fmt.Errorf("bonding curve rate %d: %w", rate, model.ErrInvalidParameters)
	}
	if overflow.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	base, err := MulDiv(overflow, claim, supply)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if rate == MaxPercent || claim.Equal(supply) {
		return base, nil
	}

	scale := sdkmath.NewInt(int64(MaxPercent))
	flat, err := Mul(supply, sdkmath.NewInt(int64(rate)))
	if err != nil {
		return sdkmath.Int{}, err
	}
	bonus, err := Mul(claim, sdkmath.NewInt(int64(MaxPercent-rate)))
	if err != nil {
		return sdkmath.Int{}, err
	}
	numerator, err := Add(flat, bonus)
	if err != nil {
		return sdkmath.Int{}, err
	}
	denominator, err := Mul(supply, scale)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return MulDiv(base, numerator, denominator)
}
