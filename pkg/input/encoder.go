package input

import (
	"sync/atomic"

	"github.com/dougsko/ddstune/pkg/hardware"
	"github.com/dougsko/ddstune/pkg/logging"
)

// Encoder accumulates detents from a two-channel rotary encoder. The edge
// handler and the UI poller share only the atomic accumulator.
type Encoder struct {
	gpio      hardware.GPIOInterface
	gate      *hardware.InterruptGate
	primary   int
	secondary int

	delta atomic.Int32
}

// NewEncoder creates an encoder on the given primary (interrupt) and
// secondary (direction) lines
func NewEncoder(gpio hardware.GPIOInterface, gate *hardware.InterruptGate, primary, secondary int) *Encoder {
	return &Encoder{
		gpio:      gpio,
		gate:      gate,
		primary:   primary,
		secondary: secondary,
	}
}

// Attach registers the rising-edge handler on the primary line
func (e *Encoder) Attach() error {
	return e.gpio.WatchRising(e.primary, e.handleEdge)
}

func (e *Encoder) handleEdge() {
	e.gate.Run(func() {
		high, err := e.gpio.GetPin(e.secondary)
		if err != nil {
			logging.Warnf("encoder", "Failed to read direction line: %v", err)
			return
		}
		e.OnEdge(high)
	})
}

// OnEdge records one detent. Secondary high turns counter-clockwise.
func (e *Encoder) OnEdge(secondaryHigh bool) {
	if secondaryHigh {
		e.delta.Add(-1)
	} else {
		e.delta.Add(1)
	}
}

// Poll returns the net rotation since the last poll and resets it
func (e *Encoder) Poll() int {
	return int(e.delta.Swap(0))
}

// Pending reports whether rotation is waiting to be polled
func (e *Encoder) Pending() bool {
	return e.delta.Load() != 0
}
