package toggle

import (
	"context"
	"time"
)

// Operation describes one toggle request.
type Operation struct {
	ID           string
	EntityID     string
	Field        string
	PendingValue bool
	RequestedAt  time.Time
}

// operation is the coordinator's record of a live Operation.
type operation[T any] struct {
	Operation

	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool

	// snapshot is the entity before the first operation in this id's chain
	// of superseded operations.
	snapshot T

	pending *Pending
}

// Pending is the handle returned by Submit.
type Pending struct {
	op       Operation
	done     chan struct{}
	accepted bool
}

func newPending(op Operation) *Pending {
	return &Pending{op: op, done: make(chan struct{})}
}

// acceptedPending is the handle for a toggle absorbed as a no-op.
func acceptedPending(op Operation) *Pending {
	p := newPending(op)
	p.resolve(true)
	return p
}

func (p *Pending) resolve(accepted bool) {
	p.accepted = accepted
	close(p.done)
}

// Operation returns the request this handle tracks. For toggles absorbed as
// no-ops the ID is empty.
func (p *Pending) Operation() Operation {
	return p.op
}

// Done is closed once the operation is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation resolves. It reports false only when the
// request failed and the change was rolled back.
func (p *Pending) Wait() bool {
	<-p.done
	return p.accepted
}
