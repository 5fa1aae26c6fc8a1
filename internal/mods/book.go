package mods

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"CycleLedger/internal/model"
)

type entry struct {
	configuration uint64
	mods          []model.TicketMod
}

// Book stores the mods of every configuration of every project, keyed by the
// configuration id so rolled-over cycles keep them.
type Book struct {
	mu      sync.Mutex
	entries map[uint64][]entry
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{entries: make(map[uint64][]entry)}
}

// Set stores mods for a configuration. Mods of the guarded configurations
// (the active one and any queued one) that are still locked at now must be
// carried over with the same beneficiary, at least the same percent and no
// earlier lock.
func (b *Book) Set(projectID, configuration uint64, guarded []uint64, mods []model.TicketMod, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(projectID, guarded, mods, now); err != nil {
		return err
	}

	list := b.entries[projectID]
	cp := append([]model.TicketMod(nil), mods...)
	for i := range list {
		if list[i].configuration == configuration {
			list[i].mods = cp
			return nil
		}
	}
	b.entries[projectID] = append(list, entry{configuration: configuration, mods: cp})
	return nil
}

// Check reports whether Set would accept mods at now without storing them.
func (b *Book) Check(projectID uint64, guarded []uint64, mods []model.TicketMod, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.check(projectID, guarded, mods, now)
}

func (b *Book) check(projectID uint64, guarded []uint64, mods []model.TicketMod, now time.Time) error {
	if err := validatePercents(mods); err != nil {
		return err
	}
	for _, e := range b.entries[projectID] {
		if !slices.Contains(guarded, e.configuration) {
			continue
		}
		for _, locked := range e.mods {
			if !locked.LockedUntil.After(now) {
				continue
			}
			if !carried(locked, mods) {
				return fmt.Errorf("mod for %s is locked until %s: %w",
					locked.Beneficiary, locked.LockedUntil.Format(time.RFC3339), model.ErrInvalidParameters)
			}
		}
	}
	return nil
}

func carried(locked model.TicketMod, mods []model.TicketMod) bool {
	for _, m := range mods {
		if m.Beneficiary == locked.Beneficiary &&
			m.PreferUnstaked == locked.PreferUnstaked &&
			m.Percent >= locked.Percent &&
			!m.LockedUntil.Before(locked.LockedUntil) {
			return true
		}
	}
	return false
}

// Active returns the mods set for a configuration, or nil.
func (b *Book) Active(projectID, configuration uint64) []model.TicketMod {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries[projectID] {
		if e.configuration == configuration {
			return append([]model.TicketMod(nil), e.mods...)
		}
	}
	return nil
}

// Snapshot is the persisted form of one project's mods, oldest first.
type Snapshot struct {
	Configurations []uint64            `json:"configurations"`
	Mods           [][]model.TicketMod `json:"mods"`
}

// Export returns the project's mods.
func (b *Book) Export(projectID uint64) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	var snap Snapshot
	for _, e := range b.entries[projectID] {
		snap.Configurations = append(snap.Configurations, e.configuration)
		snap.Mods = append(snap.Mods, append([]model.TicketMod(nil), e.mods...))
	}
	return snap
}

// Import replaces the project's mods.
func (b *Book) Import(projectID uint64, snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]entry, 0, len(snap.Configurations))
	for i, c := range snap.Configurations {
		var mods []model.TicketMod
		if i < len(snap.Mods) {
			mods = snap.Mods[i]
		}
		list = append(list, entry{configuration: c, mods: mods})
	}
	b.entries[projectID] = list
}
