package hardware

import "sync"

// InterruptGate stands in for the CPU interrupt-enable flag. Edge handlers
// run only while the gate is open; timing-critical bus transfers close it
// for their whole duration so no handler observes a half-clocked word.
//
// The gate is not reentrant.
type InterruptGate struct {
	mu sync.Mutex
}

// NewInterruptGate creates an open gate
func NewInterruptGate() *InterruptGate {
	return &InterruptGate{}
}

// Disable closes the gate and returns the function that reopens it.
// Callers defer the returned function.
func (g *InterruptGate) Disable() (restore func()) {
	g.mu.Lock()
	return g.mu.Unlock
}

// Run executes fn with the gate closed
func (g *InterruptGate) Run(fn func()) {
	restore := g.Disable()
	defer restore()
	fn()
}
