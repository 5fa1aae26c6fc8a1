package calculator

import (
	sdkmath "cosmossdk.io/math"
)

// DecayWeight returns the weight of the cycle following one with the given
// weight and discount rate (‰), floored.
func DecayWeight(weight sdkmath.Int, discountRate uint16) (sdkmath.Int, error) {
	if discountRate == 0 {
		return weight, nil
	}
	if discountRate >= MaxDiscountRate {
		return sdkmath.ZeroInt(), nil
	}
	return MulDiv(weight,
		sdkmath.NewInt(int64(MaxDiscountRate-discountRate)),
		sdkmath.NewInt(int64(MaxDiscountRate)))
}

// DecayWeightN applies DecayWeight n times, flooring at each step. It stops
// early once the weight reaches zero.
func DecayWeightN(weight sdkmath.Int, discountRate uint16, n uint64) (sdkmath.Int, error) {
	var err error
	for i := uint64(0); i < n && discountRate > 0 && weight.IsPositive(); i++ {
		if weight, err = DecayWeight(weight, discountRate); err != nil {
			return sdkmath.Int{}, err
		}
	}
	return weight, nil
}
