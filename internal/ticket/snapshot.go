package ticket

import (
	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/model"
)

// Snapshot is the persisted form of one project's balances.
type Snapshot struct {
	Holders []Holder    `json:"holders"`
	Supply  sdkmath.Int `json:"supply"`
}

// Export returns the project's balances.
func (l *Ledger) Export(projectID uint64) Snapshot {
	return Snapshot{Holders: l.Holders(projectID), Supply: l.TotalSupplyOf(projectID)}
}

// Import replaces the project's balances. Supply is recomputed from the
// holders so a damaged snapshot cannot break conservation.
func (l *Ledger) Import(projectID uint64, snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := &book{holders: make(map[model.Address]model.TicketBalance, len(snap.Holders)), supply: sdkmath.ZeroInt()}
	for _, h := range snap.Holders {
		b.holders[h.Address] = h.Balance
		b.supply = b.supply.Add(h.Balance.Total())
	}
	l.books[projectID] = b
}
