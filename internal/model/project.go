package model

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Address identifies a ticket holder, project owner or mod beneficiary.
// The empty address is the zero address.
type Address string

// ZeroAddress is the unset address.
const ZeroAddress Address = ""

// IsZero reports whether a is the unset address.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Project is an independent entity with its own funding cycles and ticket supply.
type Project struct {
	ID        uint64    `json:"id"`
	Owner     Address   `json:"owner"`
	Handle    string    `json:"handle"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectFunds tracks the funds a project holds in the base currency.
type ProjectFunds struct {
	Balance  sdkmath.Int `json:"balance"`
	Overflow sdkmath.Int `json:"overflow"`
}
