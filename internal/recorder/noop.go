package recorder

import "CycleLedger/internal/model"

// NoopRecorder is used when no event store is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(_ *model.Event) error { return nil }
func (n *NoopRecorder) Close() error                { return nil }
