// Package governance answers who may do what: the protocol governance with
// its appoint/accept handshake, project owners and their operators.
package governance

import (
	"fmt"
	"sort"
	"sync"

	"CycleLedger/internal/model"
)

// Action is an operation that needs authorization.
type Action string

const (
	ActionConfigure         Action = "configure"
	ActionTap               Action = "tap"
	ActionPrint             Action = "print"
	ActionSetOperator       Action = "set_operator"
	ActionTransferOwnership Action = "transfer_ownership"
	ActionSetFee            Action = "set_fee"
	ActionAppoint           Action = "appoint"
	ActionPay               Action = "pay"
	ActionRedeem            Action = "redeem"
	// ActionHolder covers staking, unstaking and transferring one's own tickets.
	ActionHolder Action = "holder"
)

// Gate decides whether caller may perform an otherwise open action.
type Gate func(caller model.Address, projectID uint64) bool

// Appointment is either NoAppointment or PendingAppointment.
type Appointment interface {
	appointment()
}

// NoAppointment means no successor has been appointed.
type NoAppointment struct{}

// PendingAppointment waits for Successor to accept.
type PendingAppointment struct {
	Successor model.Address
}

func (NoAppointment) appointment()      {}
func (PendingAppointment) appointment() {}

// Authority holds the authorization state.
type Authority struct {
	mu          sync.RWMutex
	governance  model.Address
	appointment Appointment
	owners      map[uint64]model.Address
	operators   map[uint64]map[model.Address]struct{}
	gates       map[Action]Gate
}

// NewAuthority creates an authority governed by governance.
func NewAuthority(governance model.Address) *Authority {
	return &Authority{
		governance:  governance,
		appointment: NoAppointment{},
		owners:      make(map[uint64]model.Address),
		operators:   make(map[uint64]map[model.Address]struct{}),
		gates:       make(map[Action]Gate),
	}
}

// Governance returns the current protocol governance.
func (a *Authority) Governance() model.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.governance
}

// Appointment returns the pending handshake state.
func (a *Authority) Appointment() Appointment {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.appointment
}

// Appoint names a successor. Only the current governance may appoint, and a
// new appointment replaces an earlier one.
func (a *Authority) Appoint(caller, successor model.Address) error {
	if successor.IsZero() {
		return fmt.Errorf("successor is the zero address: %w", model.ErrInvalidParameters)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.governance {
		return fmt.Errorf("%s is not governance: %w", caller, model.ErrUnauthorized)
	}
	a.appointment = PendingAppointment{Successor: successor}
	return nil
}

// Accept completes the handshake. Only the appointed successor may accept.
func (a *Authority) Accept(caller model.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ap := a.appointment.(type) {
	case PendingAppointment:
		if ap.Successor != caller {
			return fmt.Errorf("%s was not appointed: %w", caller, model.ErrUnauthorized)
		}
		a.governance = caller
		a.appointment = NoAppointment{}
		return nil
	default:
		return fmt.Errorf("no pending appointment: %w", model.ErrUnauthorized)
	}
}

// SetOwner records the owner of a newly created project.
func (a *Authority) SetOwner(projectID uint64, owner model.Address) error {
	if owner.IsZero() {
		return fmt.Errorf("owner is the zero address: %w", model.ErrInvalidParameters)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.owners[projectID] = owner
	return nil
}

// Owner returns the owner of a project.
func (a *Authority) Owner(projectID uint64) (model.Address, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	owner, ok := a.owners[projectID]
	if !ok {
		return model.ZeroAddress, fmt.Errorf("project %d: %w", projectID, model.ErrNotFound)
	}
	return owner, nil
}

// TransferOwnership hands a project to newOwner. Operators are cleared.
func (a *Authority) TransferOwnership(caller model.Address, projectID uint64, newOwner model.Address) error {
	if newOwner.IsZero() {
		return fmt.Errorf("new owner is the zero address: %w", model.ErrInvalidParameters)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOwner(caller, projectID); err != nil {
		return err
	}
	a.owners[projectID] = newOwner
	delete(a.operators, projectID)
	return nil
}

// SetOperator grants or revokes operator rights on a project.
func (a *Authority) SetOperator(caller model.Address, projectID uint64, operator model.Address, enabled bool) error {
	if operator.IsZero() {
		return fmt.Errorf("operator is the zero address: %w", model.ErrInvalidParameters)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireOwner(caller, projectID); err != nil {
		return err
	}
	ops := a.operators[projectID]
	if enabled {
		if ops == nil {
			ops = make(map[model.Address]struct{})
			a.operators[projectID] = ops
		}
		ops[operator] = struct{}{}
	} else {
		delete(ops, operator)
	}
	return nil
}

// Operators lists a project's operators.
func (a *Authority) Operators(projectID uint64) []model.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Address, 0, len(a.operators[projectID]))
	for op := range a.operators[projectID] {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (a *Authority) requireOwner(caller model.Address, projectID uint64) error {
	owner, ok := a.owners[projectID]
	if !ok {
		return fmt.Errorf("project %d: %w", projectID, model.ErrNotFound)
	}
	if caller != owner {
		return fmt.Errorf("%s does not own project %d: %w", caller, projectID, model.ErrUnauthorized)
	}
	return nil
}

// Restrict installs a gate on an open action (print, pay, redeem or holder
// moves). A nil gate reopens it.
func (a *Authority) Restrict(action Action, gate Gate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gate == nil {
		delete(a.gates, action)
		return
	}
	a.gates[action] = gate
}

// IsAuthorized reports whether caller may perform action on the project.
// Printing, paying, redeeming and holder moves are open to anyone unless
// restricted.
func (a *Authority) IsAuthorized(caller model.Address, projectID uint64, action Action) bool {
	if caller.IsZero() {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	switch action {
	case ActionSetFee, ActionAppoint:
		return caller == a.governance
	case ActionPrint, ActionPay, ActionRedeem, ActionHolder:
		if gate, ok := a.gates[action]; ok {
			return gate(caller, projectID)
		}
		return true
	}

	owner, ok := a.owners[projectID]
	if !ok {
		return false
	}
	if caller == owner {
		return true
	}
	switch action {
	case ActionConfigure, ActionTap:
		_, isOp := a.operators[projectID][caller]
		return isOp
	}
	return false
}

// Authorize is IsAuthorized returning ErrUnauthorized.
func (a *Authority) Authorize(caller model.Address, projectID uint64, action Action) error {
	if !a.IsAuthorized(caller, projectID, action) {
		return fmt.Errorf("%s may not %s project %d: %w", caller, action, projectID, model.ErrUnauthorized)
	}
	return nil
}
