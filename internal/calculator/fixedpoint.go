package calculator

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/model"
)

const (
	// MaxPercent is 100% in basis points (‱). Reserved rates, mod percents,
	// bonding curve rates and fees use this scale.
	MaxPercent uint16 = 10000
	// MaxDiscountRate is 100% in per mille (‰).
	MaxDiscountRate uint16 = 1000
	// WeightDecimals is the fixed-point precision of funding cycle weights.
	WeightDecimals = 18
)

// InitialWeight is the weight of a project's first funding cycle:
// 10^6 tickets per whole currency unit at 18 decimals.
var InitialWeight = sdkmath.NewIntWithDecimal(1, 24)

var weightScale = sdkmath.NewIntWithDecimal(1, WeightDecimals)

// Add returns a+b or ErrOverflow past the 256-bit ceiling.
func Add(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeAdd(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("add %s + %s: %w", a, b, model.ErrOverflow)
	}
	return res, nil
}

// Sub returns a-b. Amounts are unsigned, so a result below zero is an error.
func Sub(a, b sdkmath.Int) (sdkmath.Int, error) {
	if b.GT(a) {
		return sdkmath.Int{}, fmt.Errorf("sub %s - %s: %w", a, b, model.ErrOverflow)
	}
	return a.Sub(b), nil
}

// Mul returns a*b or ErrOverflow past the 256-bit ceiling.
func Mul(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeMul(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("mul %s * %s: %w", a, b, model.ErrOverflow)
	}
	return res, nil
}

// MulDiv returns floor(a*b/c) with a full-precision intermediate product, so
// only the result has to fit under the ceiling.
func MulDiv(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if c.IsZero() {
		return sdkmath.Int{}, fmt.Errorf("muldiv by zero: %w", model.ErrInvalidParameters)
	}
	prod := new(big.Int).Mul(a.BigInt(), b.BigInt())
	res := prod.Quo(prod, c.BigInt())
	if res.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.Int{}, fmt.Errorf("muldiv %s * %s / %s: %w", a, b, c, model.ErrOverflow)
	}
	return sdkmath.NewIntFromBigInt(res), nil
}

// ApplyPercent returns floor(amount * pct / MaxPercent).
func ApplyPercent(amount sdkmath.Int, pct uint16) (sdkmath.Int, error) {
	return MulDiv(amount, sdkmath.NewInt(int64(pct)), sdkmath.NewInt(int64(MaxPercent)))
}

// WeightedAmount converts a base-currency amount into tickets at weight.
func WeightedAmount(amount, weight sdkmath.Int) (sdkmath.Int, error) {
	return MulDiv(amount, weight, weightScale)
}
