// Package recorder persists the events emitted by committed ledger operations.
package recorder

import (
	"errors"

	"CycleLedger/internal/model"
)

// Recorder persists events for audit and analysis.
type Recorder interface {
	Record(evt *model.Event) error
	Close() error
}

// Reader is implemented by recorders that can replay what they stored.
type Reader interface {
	Events(projectID uint64, limit int) ([]model.Event, error)
}

// Multi fans every event out to several recorders.
type Multi []Recorder

func (m Multi) Record(evt *model.Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Events reads from the first member that supports it.
func (m Multi) Events(projectID uint64, limit int) ([]model.Event, error) {
	for _, r := range m {
		if rd, ok := r.(Reader); ok {
			return rd.Events(projectID, limit)
		}
	}
	return nil, nil
}
