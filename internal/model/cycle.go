package model

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Currency identifies the unit a target or payment is denominated in.
type Currency uint8

const (
	// CurrencyBase is the currency funds are held in; it never needs conversion.
	CurrencyBase Currency = 0
	// CurrencyUSD is the quoted fiat currency.
	CurrencyUSD Currency = 1
)

var currencyNames = map[Currency]string{
	CurrencyBase: "BASE",
	CurrencyUSD:  "USD",
}

func (c Currency) String() string {
	if name, ok := currencyNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CURRENCY(%d)", uint8(c))
}

// ParseCurrency resolves a currency name, case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	for c, name := range currencyNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown currency %q: %w", s, ErrInvalidParameters)
}

// FundingCycle is a time-boxed configuration epoch. A record is immutable once
// its StartAt has passed, except for Tapped which only grows up to Target.
type FundingCycle struct {
	ID           uint64        `json:"id"`
	ProjectID    uint64        `json:"project_id"`
	Number       uint64        `json:"number"`
	PreviousID   uint64        `json:"previous_id"`
	Weight       sdkmath.Int   `json:"weight"`
	Ballot       string        `json:"ballot"`
	ConfiguredAt time.Time     `json:"configured_at"`
	StartAt      time.Time     `json:"start_at"`
	Duration     time.Duration `json:"duration"`
	Target       sdkmath.Int   `json:"target"`
	Currency     Currency      `json:"currency"`
	Fee          uint16        `json:"fee"`
	DiscountRate uint16        `json:"discount_rate"`
	CycleLimit   uint8         `json:"cycle_limit"`
	Tapped       sdkmath.Int   `json:"tapped"`

	// Configuration is the id of the configured record. Rolled-over cycles
	// share it with the cycle they were rolled from.
	Configuration uint64 `json:"configuration"`

	ReservedRate                    uint16 `json:"reserved_rate"`
	BondingCurveRate                uint16 `json:"bonding_curve_rate"`
	ReconfigurationBondingCurveRate uint16 `json:"reconfiguration_bonding_curve_rate"`
}

// EndAt returns when the cycle's duration elapses. Zero-duration cycles never end.
func (fc FundingCycle) EndAt() time.Time {
	if fc.Duration == 0 {
		return time.Time{}
	}
	return fc.StartAt.Add(fc.Duration)
}

// Remaining returns the part of the target not yet tapped.
func (fc FundingCycle) Remaining() sdkmath.Int {
	if fc.Tapped.GTE(fc.Target) {
		return sdkmath.ZeroInt()
	}
	return fc.Target.Sub(fc.Tapped)
}

// CycleParams are the funding properties supplied when configuring a cycle.
type CycleParams struct {
	Target       sdkmath.Int   `json:"target"`
	Currency     Currency      `json:"currency"`
	Duration     time.Duration `json:"duration"`
	CycleLimit   uint8         `json:"cycle_limit"`
	DiscountRate uint16        `json:"discount_rate"`
	Ballot       string        `json:"ballot"`
}

// CycleMetadata are the ticketing properties supplied when configuring a cycle.
type CycleMetadata struct {
	ReservedRate                    uint16 `json:"reserved_rate"`
	BondingCurveRate                uint16 `json:"bonding_curve_rate"`
	ReconfigurationBondingCurveRate uint16 `json:"reconfiguration_bonding_curve_rate"`
}
