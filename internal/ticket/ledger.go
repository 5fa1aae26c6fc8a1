// Package ticket keeps per-project ticket balances in two pools (staked and
// unstaked) and the matching total supply.
package ticket

import (
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/calculator"
	"CycleLedger/internal/model"
)

// Credit is one entry of a batch mint.
type Credit struct {
	Holder         model.Address
	Amount         sdkmath.Int
	PreferUnstaked bool
}

type book struct {
	holders map[model.Address]model.TicketBalance
	supply  sdkmath.Int
}

// Ledger holds ticket balances. Supply always equals the sum of every
// holder's staked and unstaked balance.
type Ledger struct {
	mu    sync.Mutex
	books map[uint64]*book
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{books: make(map[uint64]*book)}
}

func (l *Ledger) bookOf(projectID uint64) *book {
	b, ok := l.books[projectID]
	if !ok {
		b = &book{holders: make(map[model.Address]model.TicketBalance), supply: sdkmath.ZeroInt()}
		l.books[projectID] = b
	}
	return b
}

func (b *book) balance(holder model.Address) model.TicketBalance {
	bal, ok := b.holders[holder]
	if !ok {
		return model.TicketBalance{Staked: sdkmath.ZeroInt(), Unstaked: sdkmath.ZeroInt()}
	}
	return bal
}

func checkAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("ticket amount must be non-negative: %w", model.ErrInvalidParameters)
	}
	return nil
}

// PrepareMintBatch validates crediting every entry of credits and returns a
// commit that applies them all. Zero-amount entries are skipped.
func (l *Ledger) PrepareMintBatch(projectID uint64, credits []Credit) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bookOf(projectID)
	supply := b.supply
	next := make(map[model.Address]model.TicketBalance, len(credits))
	for _, c := range credits {
		if err := checkAmount(c.Amount); err != nil {
			return nil, err
		}
		if c.Amount.IsZero() {
			continue
		}
		if c.Holder.IsZero() {
			return nil, fmt.Errorf("mint to the zero address: %w", model.ErrInvalidParameters)
		}
		bal, ok := next[c.Holder]
		if !ok {
			bal = b.balance(c.Holder)
		}
		var err error
		if supply, err = calculator.Add(supply, c.Amount); err != nil {
			return nil, err
		}
		if c.PreferUnstaked {
			bal.Unstaked = bal.Unstaked.Add(c.Amount)
		} else {
			bal.Staked = bal.Staked.Add(c.Amount)
		}
		next[c.Holder] = bal
	}

	commit := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		b := l.bookOf(projectID)
		for holder, bal := range next {
			b.holders[holder] = bal
		}
		b.supply = supply
	}
	return commit, nil
}

// MintBatch credits every entry or none.
func (l *Ledger) MintBatch(projectID uint64, credits []Credit) error {
	commit, err := l.PrepareMintBatch(projectID, credits)
	if err != nil {
		return err
	}
	commit()
	return nil
}

// PrepareMint validates a single credit.
func (l *Ledger) PrepareMint(projectID uint64, holder model.Address, amount sdkmath.Int, preferUnstaked bool) (func(), error) {
	return l.PrepareMintBatch(projectID, []Credit{{Holder: holder, Amount: amount, PreferUnstaked: preferUnstaked}})
}

// Mint credits amount tickets to holder, unstaked if preferUnstaked.
func (l *Ledger) Mint(projectID uint64, holder model.Address, amount sdkmath.Int, preferUnstaked bool) error {
	return l.MintBatch(projectID, []Credit{{Holder: holder, Amount: amount, PreferUnstaked: preferUnstaked}})
}

// PrepareBurn validates removing amount tickets from holder. The preferred
// pool is drawn first; the other pool covers the rest only with allowFallback.
func (l *Ledger) PrepareBurn(projectID uint64, holder model.Address, amount sdkmath.Int, preferUnstaked, allowFallback bool) (func(), error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bookOf(projectID)
	bal := b.balance(holder)
	first, second := &bal.Staked, &bal.Unstaked
	if preferUnstaked {
		first, second = second, first
	}

	take := sdkmath.MinInt(*first, amount)
	rest := amount.Sub(take)
	if rest.IsPositive() && (!allowFallback || second.LT(rest)) {
		return nil, fmt.Errorf("burn %s from %s holding %s: %w", amount, holder, bal.Total(), model.ErrInsufficientBalance)
	}
	*first = first.Sub(take)
	*second = second.Sub(rest)
	supply, err := calculator.Sub(b.supply, amount)
	if err != nil {
		return nil, err
	}

	commit := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		b := l.bookOf(projectID)
		b.holders[holder] = bal
		b.supply = supply
	}
	return commit, nil
}

// Burn removes amount tickets from holder.
func (l *Ledger) Burn(projectID uint64, holder model.Address, amount sdkmath.Int, preferUnstaked, allowFallback bool) error {
	commit, err := l.PrepareBurn(projectID, holder, amount, preferUnstaked, allowFallback)
	if err != nil {
		return err
	}
	commit()
	return nil
}

// BalanceOf returns holder's tickets in the project.
func (l *Ledger) BalanceOf(projectID uint64, holder model.Address) model.TicketBalance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.books[projectID]; ok {
		return b.balance(holder)
	}
	return model.TicketBalance{Staked: sdkmath.ZeroInt(), Unstaked: sdkmath.ZeroInt()}
}

// TotalSupplyOf returns the project's ticket supply.
func (l *Ledger) TotalSupplyOf(projectID uint64) sdkmath.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.books[projectID]; ok {
		return b.supply
	}
	return sdkmath.ZeroInt()
}

// Holder pairs an address with its balance.
type Holder struct {
	Address model.Address       `json:"address"`
	Balance model.TicketBalance `json:"balance"`
}

// Holders lists the project's holders with a non-zero balance, largest first.
func (l *Ledger) Holders(projectID uint64) []Holder {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.books[projectID]
	if !ok {
		return nil
	}
	out := make([]Holder, 0, len(b.holders))
	for addr, bal := range b.holders {
		if bal.Total().IsPositive() {
			out = append(out, Holder{Address: addr, Balance: bal})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Balance.Total(), out[j].Balance.Total()
		if !ti.Equal(tj) {
			return ti.GT(tj)
		}
		return out[i].Address < out[j].Address
	})
	return out
}
