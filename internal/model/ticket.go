package model

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// TicketBalance is one holder's tickets in a project, split into pools.
type TicketBalance struct {
	Staked   sdkmath.Int `json:"staked"`
	Unstaked sdkmath.Int `json:"unstaked"`
}

// Total returns staked + unstaked.
func (b TicketBalance) Total() sdkmath.Int {
	return b.Staked.Add(b.Unstaked)
}

// TicketMod routes a share of every reserved-ticket print to a beneficiary.
type TicketMod struct {
	Percent        uint16    `json:"percent"`
	LockedUntil    time.Time `json:"locked_until"`
	Beneficiary    Address   `json:"beneficiary"`
	PreferUnstaked bool      `json:"prefer_unstaked"`
}

// TrackingState is the reserved-ticket bookkeeping of a project.
type TrackingState struct {
	UnreservedIssuedSinceLastPrint sdkmath.Int `json:"unreserved_issued_since_last_print"`
	FullyReservedSinceLastPrint    sdkmath.Int `json:"fully_reserved_since_last_print"`
	TotalWeightedIssued            sdkmath.Int `json:"total_weighted_issued"`
	TotalReservedPrinted           sdkmath.Int `json:"total_reserved_printed"`
}

// NewTrackingState returns a zeroed tracking state.
func NewTrackingState() TrackingState {
	return TrackingState{
		UnreservedIssuedSinceLastPrint: sdkmath.ZeroInt(),
		FullyReservedSinceLastPrint:    sdkmath.ZeroInt(),
		TotalWeightedIssued:            sdkmath.ZeroInt(),
		TotalReservedPrinted:           sdkmath.ZeroInt(),
	}
}
