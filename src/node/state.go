package node

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle stage of a node. A node only moves forward, from
// Initial to Running to Shutdown; Shutdown may also follow Initial directly.
type State uint32

const (
	// Initial is the state of a node that has not been started.
	Initial State = iota
	// Running is the state of a node serving or proposing transactions.
	Running
	// Shutdown is terminal. Proposals are refused.
	Shutdown
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case Running:
		return "Running"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// state tracks the lifecycle of a node and the goroutines it started.
type state struct {
	current atomic.Uint32
	wg      sync.WaitGroup
}

func (b *state) getState() State {
	return State(b.current.Load())
}

// advance moves to next and returns the previous state. It does nothing, and
// reports false, if the node is already at or past next.
func (b *state) advance(next State) (State, bool) {
	for {
		prev := b.getState()
		if prev >= next {
			return prev, false
		}
		if b.current.CompareAndSwap(uint32(prev), uint32(next)) {
			return prev, true
		}
	}
}

// goFunc runs f in a goroutine that waitRoutines waits for.
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
