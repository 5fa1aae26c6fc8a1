package ticket

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/model"
)

// Stake moves amount of holder's unstaked tickets into the staked pool.
func (l *Ledger) Stake(projectID uint64, holder model.Address, amount sdkmath.Int) error {
	return l.move(projectID, holder, amount, true)
}

// Unstake moves amount of holder's staked tickets into the unstaked pool.
func (l *Ledger) Unstake(projectID uint64, holder model.Address, amount sdkmath.Int) error {
	return l.move(projectID, holder, amount, false)
}

func (l *Ledger) move(projectID uint64, holder model.Address, amount sdkmath.Int, toStaked bool) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", model.ErrInvalidParameters)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bookOf(projectID)
	bal := b.balance(holder)
	from, to := &bal.Staked, &bal.Unstaked
	if toStaked {
		from, to = to, from
	}
	if from.LT(amount) {
		return fmt.Errorf("move %s with %s available: %w", amount, *from, model.ErrInsufficientBalance)
	}
	*from = from.Sub(amount)
	*to = to.Add(amount)
	b.holders[holder] = bal
	return nil
}

// Transfer moves staked tickets between holders. Supply is unchanged.
func (l *Ledger) Transfer(projectID uint64, from, to model.Address, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", model.ErrInvalidParameters)
	}
	if to.IsZero() {
		return fmt.Errorf("transfer to the zero address: %w", model.ErrInvalidParameters)
	}
	if from == to {
		return fmt.Errorf("transfer to self: %w", model.ErrInvalidParameters)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bookOf(projectID)
	src := b.balance(from)
	if src.Staked.LT(amount) {
		return fmt.Errorf("transfer %s with %s staked: %w", amount, src.Staked, model.ErrInsufficientBalance)
	}
	dst := b.balance(to)
	src.Staked = src.Staked.Sub(amount)
	dst.Staked = dst.Staked.Add(amount)
	b.holders[from] = src
	b.holders[to] = dst
	return nil
}
