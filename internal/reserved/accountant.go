// Package reserved tracks how many reserved tickets a project may print.
//
// Two counters accumulate between prints: S, the payer shares issued while the
// reserved rate was below 100%, and F, the weighted amounts issued while it was
// exactly 100%. At print time with rate R the printable amount is
//
//	F + floor(S * 10000 / (10000 - R)) - S    (R < 10000)
//	F + S                                     (R = 10000)
//
// so the result depends only on the counters and the rate in force when
// printing. A print resets both counters.
package reserved

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
)

// Accountant holds the tracking state of every project.
type Accountant struct {
	mu     sync.Mutex
	states map[uint64]model.TrackingState
}

// NewAccountant creates an empty accountant.
func NewAccountant() *Accountant {
	return &Accountant{states: make(map[uint64]model.TrackingState)}
}

func (a *Accountant) state(projectID uint64) model.TrackingState {
	if st, ok := a.states[projectID]; ok {
		return st
	}
	return model.NewTrackingState()
}

// PrepareIssuance splits a payment's weighted amount at reservedRate and
// returns the payer's share with a commit that records the issuance.
func (a *Accountant) PrepareIssuance(projectID uint64, weighted sdkmath.Int, reservedRate uint16) (sdkmath.Int, func(), error) {
	if weighted.IsNil() || weighted.IsNegative() {
		return sdkmath.Int{}, nil, fmt.Errorf("weighted amount must be non-negative: %w", model.ErrInvalidParameters)
	}
	if reservedRate > calculator.MaxPercent {
		return sdkmath.Int{}, nil, fmt.Errorf("reserved rate %d: %w", reservedRate, model.ErrInvalidParameters)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.state(projectID)

	payer := sdkmath.ZeroInt()
	var err error
	if reservedRate == calculator.MaxPercent {
		if st.FullyReservedSinceLastPrint, err = calculator.Add(st.FullyReservedSinceLastPrint, weighted); err != nil {
			return sdkmath.Int{}, nil, err
		}
	} else {
		if payer, err = calculator.ApplyPercent(weighted, calculator.MaxPercent-reservedRate); err != nil {
			return sdkmath.Int{}, nil, err
		}
		if st.UnreservedIssuedSinceLastPrint, err = calculator.Add(st.UnreservedIssuedSinceLastPrint, payer); err != nil {
			return sdkmath.Int{}, nil, err
		}
	}
	if st.TotalWeightedIssued, err = calculator.Add(st.TotalWeightedIssued, weighted); err != nil {
		return sdkmath.Int{}, nil, err
	}

	commit := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.states[projectID] = st
	}
	return payer, commit, nil
}

// RecordIssuance records a payment and returns the payer's share.
func (a *Accountant) RecordIssuance(projectID uint64, weighted sdkmath.Int, reservedRate uint16) (sdkmath.Int, error) {
	payer, commit, err := a.PrepareIssuance(projectID, weighted, reservedRate)
	if err != nil {
		return sdkmath.Int{}, err
	}
	commit()
	return payer, nil
}

// Printable returns the reserved tickets printable now at reservedRate.
func (a *Accountant) Printable(projectID uint64, reservedRate uint16) (sdkmath.Int, error) {
	if reservedRate > calculator.MaxPercent {
		return sdkmath.Int{}, fmt.Errorf("reserved rate %d: %w", reservedRate, model.ErrInvalidParameters)
	}
	a.mu.Lock()
	st := a.state(projectID)
	a.mu.Unlock()
	return printable(st, reservedRate)
}

func printable(st model.TrackingState, rate uint16) (sdkmath.Int, error) {
	s := st.UnreservedIssuedSinceLastPrint
	var implied sdkmath.Int
	switch {
	case rate == 0 || s.IsZero():
		implied = sdkmath.ZeroInt()
	case rate == calculator.MaxPercent:
		implied = s
	default:
		gross, err := calculator.MulDiv(s,
			sdkmath.NewInt(int64(calculator.MaxPercent)),
			sdkmath.NewInt(int64(calculator.MaxPercent-rate)))
		if err != nil {
			return sdkmath.Int{}, err
		}
		implied = gross.Sub(s)
	}
	return calculator.Add(st.FullyReservedSinceLastPrint, implied)
}

// PrepareReset returns a commit that clears both counters after printed
// tickets were minted.
func (a *Accountant) PrepareReset(projectID uint64, printed sdkmath.Int) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.state(projectID)
	total, err := calculator.Add(st.TotalReservedPrinted, printed)
	if err != nil {
		return nil, err
	}
	st.UnreservedIssuedSinceLastPrint = sdkmath.ZeroInt()
	st.FullyReservedSinceLastPrint = sdkmath.ZeroInt()
	st.TotalReservedPrinted = total

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.states[projectID] = st
	}, nil
}

// Tracking returns the project's tracking state.
func (a *Accountant) Tracking(projectID uint64) model.TrackingState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state(projectID)
}

// Import replaces the project's tracking state.
func (a *Accountant) Import(projectID uint64, st model.TrackingState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[projectID] = st
}
