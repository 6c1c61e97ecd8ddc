// Package flight collapses concurrent identical upstream calls into a
// single execution.
package flight

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Coordinator guarantees at most one in-flight producer per key.
// Concurrent callers for the same key block on the one execution and all
// observe its result, success or failure. The registration is removed on
// every exit path, so a failed call never poisons the key; the next
// caller starts fresh.
type Coordinator struct {
	group    singleflight.Group
	inFlight atomic.Int64
}

// New creates a Coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// Do invokes producer for key unless an identical call is already in
// flight, in which case it waits for that call instead. leader reports
// whether producer ran in this caller: the caller that actually hit the
// upstream sees leader=true, callers that piggybacked see leader=false.
func (c *Coordinator) Do(key string, producer func() (any, error)) (v any, leader bool, err error) {
	executed := false
	v, err, _ = c.group.Do(key, func() (any, error) {
		executed = true
		c.inFlight.Add(1)
		defer c.inFlight.Add(-1)
		return producer()
	})
	return v, executed, err
}

// InFlight returns the number of producer calls currently executing.
// Operational visibility only; the value is stale the moment it is read.
func (c *Coordinator) InFlight() int {
	return int(c.inFlight.Load())
}
