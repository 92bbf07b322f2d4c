package input

import (
	"time"

	"github.com/dougsko/ddstune/pkg/hardware"
	"github.com/dougsko/ddstune/pkg/logging"
)

// ButtonResult is the outcome of classifying one press
type ButtonResult int

const (
	NotPressed ButtonResult = iota
	ShortPress
	LongPress
	InterruptedByEncoder
)

// String returns string representation of the result
func (r ButtonResult) String() string {
	switch r {
	case NotPressed:
		return "not-pressed"
	case ShortPress:
		return "short"
	case LongPress:
		return "long"
	case InterruptedByEncoder:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Timing of the press classifier
const (
	ButtonTick          = 100 * time.Millisecond
	ButtonReleaseSettle = 5 * time.Millisecond
	ButtonWaitPoll      = 10 * time.Millisecond
	ButtonWaitSettle    = 25 * time.Millisecond
)

// Activity reports pending encoder rotation
type Activity interface {
	Pending() bool
}

// Button classifies presses of an active-low push button
type Button struct {
	gpio     hardware.GPIOInterface
	pin      int
	activity Activity
	sleep    func(time.Duration)
}

// NewButton creates a button on pin. Rotation seen through activity while
// the button is held interrupts classification.
func NewButton(gpio hardware.GPIOInterface, pin int, activity Activity) *Button {
	return &Button{
		gpio:     gpio,
		pin:      pin,
		activity: activity,
		sleep:    time.Sleep,
	}
}

// SetSleep replaces the delay function, for tests
func (b *Button) SetSleep(sleep func(time.Duration)) {
	b.sleep = sleep
}

// Down reports whether the button is pressed. A read error counts as released.
func (b *Button) Down() bool {
	high, err := b.gpio.GetPin(b.pin)
	if err != nil {
		logging.Warnf("button", "Failed to read button: %v", err)
		return false
	}
	return !high
}

// Classify waits at most budget ticks for the press to resolve
func (b *Button) Classify(budget int) ButtonResult {
	if !b.Down() {
		return NotPressed
	}

	for budget > 0 {
		b.sleep(ButtonTick)
		if !b.Down() {
			b.sleep(ButtonReleaseSettle)
			return ShortPress
		}
		if b.activity != nil && b.activity.Pending() {
			return InterruptedByEncoder
		}
		budget--
	}
	return LongPress
}

// WaitRelease blocks until the button is up, then lets contacts settle
func (b *Button) WaitRelease() {
	for b.Down() {
		b.sleep(ButtonWaitPoll)
	}
	b.sleep(ButtonWaitSettle)
}
