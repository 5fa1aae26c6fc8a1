package fund

import (
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"CycleLedger/internal/cycle"
	"CycleLedger/internal/governance"
	"CycleLedger/internal/mods"
	"CycleLedger/internal/model"
	"CycleLedger/internal/ticket"
)

const (
	ledgerKey     = "ledger"
	projectPrefix = "project/"
)

// KV is the key-value store snapshots are written to.
type KV interface {
	Put(key string, v interface{}) error
	Get(key string, v interface{}) (bool, error)
	Keys(prefix string) ([]string, error)
}

// LedgerState is the protocol-wide part of the ledger.
type LedgerState struct {
	NextProjectID uint64              `json:"next_project_id"`
	ProtocolFee   uint16              `json:"protocol_fee"`
	FeeBalance    sdkmath.Int         `json:"fee_balance"`
	Governance    governance.Snapshot `json:"governance"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ProjectState is everything the ledger knows about one project.
type ProjectState struct {
	Project   model.Project       `json:"project"`
	Balance   sdkmath.Int         `json:"balance"`
	Cycles    cycle.Snapshot      `json:"cycles"`
	Tickets   ticket.Snapshot     `json:"tickets"`
	Mods      mods.Snapshot       `json:"mods"`
	Tracking  model.TrackingState `json:"tracking"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func projectKey(id uint64) string {
	return fmt.Sprintf("%s%020d", projectPrefix, id)
}

// LoadState reads the ledger and every project from kv. A store with no
// ledger entry yields a nil LedgerState.
func LoadState(kv KV) (*LedgerState, []*ProjectState, error) {
	var ledger LedgerState
	ok, err := kv.Get(ledgerKey, &ledger)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	keys, err := kv.Keys(projectPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]*ProjectState, 0, len(keys))
	for _, key := range keys {
		var ps ProjectState
		if _, err := kv.Get(key, &ps); err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", strings.TrimPrefix(key, projectPrefix), err)
		}
		projects = append(projects, &ps)
	}
	if !ok {
		return nil, projects, nil
	}
	return &ledger, projects, nil
}

// SaveLedger writes the protocol-wide state.
func SaveLedger(kv KV, st *LedgerState) error {
	st.UpdatedAt = time.Now()
	return kv.Put(ledgerKey, st)
}

// SaveProject writes one project's state.
func SaveProject(kv KV, st *ProjectState) error {
	st.UpdatedAt = time.Now()
	return kv.Put(projectKey(st.Project.ID), st)
}
